package trends

// Generic newsroom and conflict vocabulary that says nothing about a specific place or actor.
var stopWords = set(
	"video", "report", "news", "syria", "breaking", "exclusive", "live", "coverage",
	"footage", "update", "analysis", "watch", "today", "yesterday", "daily", "weekly",
	"killed", "injured", "dead", "attack", "clash", "fighting", "battle", "force", "army",
	"rebel", "regime", "assad", "isis", "group", "militia", "control", "village", "town",
	"city", "near", "north", "south", "east", "west", "central", "province", "rural",
	"media", "channel", "network", "agency", "source", "via", "confirmed", "official",
	"statement", "announced", "claimed", "reported", "said", "says", "claims", "reports",
	"about", "this", "that", "with", "from", "after", "before", "during", "while", "when",
	"where", "what", "which", "who", "whom", "whose", "why", "how", "and", "but", "nor",
	"for", "yet", "the", "are", "was", "were", "has", "have", "had", "been", "their", "its",
	"into", "over", "against", "between", "amid", "also", "more", "than", "new",
	// event categories prefixed to stored titles
	"combat", "political", "casualties", "protest",
)

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
