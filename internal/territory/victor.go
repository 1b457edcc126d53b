package territory

import (
	"strings"

	types "github.com/yungbote/frontline-backend/internal/domain"
)

// VictorAliases maps a canonical victor to the names and short names a faction may carry.
type VictorAliases map[string][]string

func DefaultVictorAliases() VictorAliases {
	return VictorAliases{
		"Government": {"GOV", "SAA", "Syrian Government", "Assad", "Regime"},
		"Rebel":      {"REB", "FSA", "Rebels", "Opposition", "HTS"},
		"SDF":        {"SDF", "Kurdish", "Kurds", "YPG"},
		"ISIS":       {"ISIS", "IS", "ISIL", "Daesh"},
		"Turkey":     {"TUR", "TSK", "Turkish"},
	}
}

// Canonical returns the canonical victor for a classifier label, or "".
func (a VictorAliases) Canonical(victor string) string {
	v := strings.TrimSpace(victor)
	if v == "" || strings.EqualFold(v, "none") {
		return ""
	}
	for key, aliases := range a {
		if strings.EqualFold(v, key) {
			return key
		}
		for _, al := range aliases {
			if strings.EqualFold(v, al) {
				return key
			}
		}
	}
	return ""
}

// MatchFaction picks the faction a victor label refers to: short name in the alias set first,
// then a faction name containing the canonical key.
func (a VictorAliases) MatchFaction(factions []*types.Faction, victor string) *types.Faction {
	key := a.Canonical(victor)
	if key == "" {
		return nil
	}
	aliases := append([]string{key}, a[key]...)
	for _, f := range factions {
		if f == nil {
			continue
		}
		for _, al := range aliases {
			if strings.EqualFold(strings.TrimSpace(f.ShortName), al) {
				return f
			}
		}
	}
	lk := strings.ToLower(key)
	for _, f := range factions {
		if f != nil && strings.Contains(strings.ToLower(f.Name), lk) {
			return f
		}
	}
	return nil
}
