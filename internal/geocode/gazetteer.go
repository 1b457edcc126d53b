package geocode

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed gazetteer.yaml
var embeddedGazetteer []byte

type Place struct {
	Name string  `yaml:"name"`
	Lat  float64 `yaml:"lat"`
	Lng  float64 `yaml:"lng"`
}

type Region struct {
	Name    string   `yaml:"name"`
	Lat     float64  `yaml:"lat"`
	Lng     float64  `yaml:"lng"`
	Aliases []string `yaml:"aliases"`
}

type gazetteerFile struct {
	Country     string            `yaml:"country"`
	Places      []Place           `yaml:"places"`
	Hubs        []Place           `yaml:"hubs"`
	Regions     []Region          `yaml:"regions"`
	Arabic      map[string]string `yaml:"arabic"`
	LiveAliases map[string]string `yaml:"live_aliases"`
}

// Gazetteer is the curated, read-only lookup data. Keys are normalized.
type Gazetteer struct {
	Country     string
	places      map[string]Place
	hubs        map[string]Place
	regions     []Region
	arabic      map[string]string
	liveAliases map[string]string
}

// LoadGazetteer reads a YAML gazetteer from path, or the embedded default when path is empty.
func LoadGazetteer(path string) (*Gazetteer, error) {
	raw := embeddedGazetteer
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read gazetteer: %w", err)
		}
		raw = b
	}
	return ParseGazetteer(raw)
}

func ParseGazetteer(raw []byte) (*Gazetteer, error) {
	var f gazetteerFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse gazetteer: %w", err)
	}
	g := &Gazetteer{
		Country:     strings.TrimSpace(f.Country),
		places:      map[string]Place{},
		hubs:        map[string]Place{},
		arabic:      map[string]string{},
		liveAliases: map[string]string{},
	}
	for _, p := range f.Places {
		if k := Normalize(p.Name); k != "" {
			g.places[k] = p
		}
	}
	for _, p := range f.Hubs {
		if k := Normalize(p.Name); k != "" {
			g.hubs[k] = p
		}
	}
	for _, r := range f.Regions {
		names := []string{Normalize(r.Name)}
		for _, a := range r.Aliases {
			if k := Normalize(a); k != "" {
				names = append(names, k)
			}
		}
		r.Aliases = names
		g.regions = append(g.regions, r)
	}
	for k, v := range f.Arabic {
		g.arabic[strings.TrimSpace(k)] = v
	}
	for k, v := range f.LiveAliases {
		g.liveAliases[Normalize(k)] = v
	}
	return g, nil
}

// Normalize lower-cases and trims. It is also the geocode cache key.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Lookup is the dictionary tier: hubs, exact names, Arabic aliases, then al-/el- variants.
func (g *Gazetteer) Lookup(name string) (Place, bool) {
	if g == nil {
		return Place{}, false
	}
	key := Normalize(name)
	if key == "" {
		return Place{}, false
	}
	if p, ok := g.hubs[key]; ok {
		return p, true
	}
	if p, ok := g.places[key]; ok {
		return p, true
	}
	if en, ok := g.arabic[strings.TrimSpace(name)]; ok {
		if p, ok := g.places[Normalize(en)]; ok {
			return p, true
		}
	}
	for _, v := range articleVariants(key) {
		if p, ok := g.places[v]; ok {
			return p, true
		}
	}
	return Place{}, false
}

func articleVariants(key string) []string {
	var out []string
	for _, prefix := range []string{"al-", "al ", "el-", "el ", "ar ", "as ", "az "} {
		if strings.HasPrefix(key, prefix) {
			out = append(out, strings.TrimSpace(strings.TrimPrefix(key, prefix)))
		}
	}
	if len(out) > 0 {
		return out
	}
	return []string{"al-" + key, "al " + key, "el-" + key}
}

// MatchRegion is the containment tier: "<region>", "<region> countryside", "<region> province",
// or the region name appearing as whole words inside the term.
func (g *Gazetteer) MatchRegion(name string) (Region, bool) {
	if g == nil {
		return Region{}, false
	}
	key := Normalize(name)
	if key == "" {
		return Region{}, false
	}
	padded := " " + wordsOnly(key) + " "
	for _, r := range g.regions {
		for _, n := range r.Aliases {
			if key == n || key == n+" countryside" || key == n+" province" || key == n+" governorate" {
				return r, true
			}
		}
	}
	for _, r := range g.regions {
		for _, n := range r.Aliases {
			if strings.Contains(padded, " "+wordsOnly(n)+" ") {
				return r, true
			}
		}
	}
	return Region{}, false
}

// LiveQuery is the text sent to the external geocoder.
func (g *Gazetteer) LiveQuery(name string) string {
	q := strings.TrimSpace(name)
	if g == nil {
		return q
	}
	if alias, ok := g.liveAliases[Normalize(name)]; ok {
		q = alias
	} else if en, ok := g.arabic[q]; ok {
		q = en
	}
	if g.Country != "" && !strings.Contains(strings.ToLower(q), strings.ToLower(g.Country)) {
		q = q + ", " + g.Country
	}
	return q
}

func wordsOnly(s string) string {
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '-' || r == ',' || r == '.' || r == '(' || r == ')' || r == '/' || r == '\''
	}), " ")
}
