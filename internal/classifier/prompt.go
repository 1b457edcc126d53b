package classifier

import "fmt"

const systemPrompt = "You are a professional war intelligence API. You output JSON only."

func buildPrompt(subject, contextText, originURL string) string {
	return fmt.Sprintf(`You are a professional war analyst covering %s.
DATA: %q
SOURCE: %s

INSTRUCTIONS:
1. locations: list ALL distinct geographic locations mentioned (cities, neighborhoods, towns). If fighting spans multiple areas, list each one.
2. captured: true only if territory control changed hands.
3. For clashes where control is contested but not captured, captured=false.

RETURN JSON ONLY:
{
  "relevant": bool,
  "category": "COMBAT|CLASH|POLITICAL|CASUALTIES|PROTEST",
  "locations": ["Location1", "Location2"],
  "captured": bool,
  "victor": "Government|Rebel|ISIS|SDF|Turkey|None",
  "summary": "Concise journalistic sentence",
  "evidence_score": 1-10,
  "key": "unique_semantic_key"
}`, subject, contextText, originURL)
}
