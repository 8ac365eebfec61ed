package shared

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"

	"placeharvest/internal/domain"
)

// Targets is the run's city list and search vocabulary.
type Targets struct {
	Keywords []string    `toml:"keywords"`
	Cities   []cityEntry `toml:"cities"`
}

type cityEntry struct {
	Name string   `toml:"name"`
	Lat  *float64 `toml:"lat"`
	Lon  *float64 `toml:"lon"`
	HL   string   `toml:"hl"`
}

func LoadTargets(path string) (Targets, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Targets{}, err
	}
	var t Targets
	if err := toml.Unmarshal(b, &t); err != nil {
		return Targets{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(t.Cities) == 0 {
		return Targets{}, fmt.Errorf("%s: no cities", path)
	}
	if len(t.Keywords) == 0 {
		return Targets{}, fmt.Errorf("%s: no keywords", path)
	}
	return t, nil
}

// DomainCities converts entries in file order. Names repeated up to case and
// spacing keep their first entry. A center is kept only when both coordinates
// are present and in range.
func (t Targets) DomainCities() []domain.City {
	out := make([]domain.City, 0, len(t.Cities))
	seen := make(map[string]struct{}, len(t.Cities))
	for _, c := range t.Cities {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		key := strings.Join(strings.Fields(strings.ToLower(name)), " ")
		if _, dup := seen[key]; dup {
			log.Warn().Str("city", name).Msg("duplicate city entry ignored")
			continue
		}
		seen[key] = struct{}{}
		city := domain.City{Name: name, Locale: c.HL}
		if c.Lat != nil && c.Lon != nil && *c.Lat >= -90 && *c.Lat <= 90 && *c.Lon >= -180 && *c.Lon <= 180 {
			city.Center = &domain.Coords{Lat: *c.Lat, Lon: *c.Lon}
		}
		out = append(out, city)
	}
	return out
}

// BooleanQuery joins keywords as `"k1" OR "k2"`, dropping blanks and exact
// repeats while keeping first-seen order.
func BooleanQuery(keywords []string) string {
	seen := make(map[string]struct{}, len(keywords))
	parts := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		parts = append(parts, `"`+strings.ReplaceAll(k, `"`, "")+`"`)
	}
	return strings.Join(parts, " OR ")
}
