package geo

import (
	"context"
	"slices"
	"strings"

	"stravation/internal/gpx"
)

const (
	sampleStep   = 50
	bboxExpand   = 0.08
	minZoneRunes = 3
)

var reunionNames = map[string]bool{
	"la réunion": true,
	"la reunion": true,
	"réunion":    true,
	"reunion":    true,
}

var cirqueToponyms = map[string]string{
	"marla": "Mafate", "la nouvelle": "Mafate", "roche plate": "Mafate", "aurère": "Mafate",
	"ilet à bourse": "Mafate", "ilet à bourses": "Mafate", "grand place": "Mafate", "grand-place": "Mafate",
	"lataniers": "Mafate", "orangers": "Mafate", "grand-place les hauts": "Mafate", "grand place les hauts": "Mafate",

	"cilaos": "Cilaos", "bras sec": "Cilaos", "bras-sec": "Cilaos", "ilet à cordes": "Cilaos", "îlet à cordes": "Cilaos",

	"salazie": "Salazie", "hell-bourg": "Salazie", "hell bourg": "Salazie", "grand ilet": "Salazie",
	"grand-ilet": "Salazie", "mare à poule d’eau": "Salazie",
}

// Cirque returns the Réunion cirque (Mafate, Cilaos or Salazie) a geocoded point lies in, or "".
func Cirque(a Address) string {
	if !reunionNames[strings.ToLower(strings.TrimSpace(a.Admin1))] {
		return ""
	}
	var names []string
	for _, t := range append(slices.Clone(a.Toponyms), a.City, a.Admin2) {
		n := strings.ToLower(strings.TrimSpace(t))
		if n == "" {
			continue
		}
		if c, ok := cirqueToponyms[n]; ok {
			return c
		}
		names = append(names, n)
	}
	joined := strings.Join(names, " | ")
	for _, c := range []string{"Mafate", "Cilaos", "Salazie"} {
		if strings.Contains(joined, strings.ToLower(c)) {
			return c
		}
	}
	return ""
}

// MergeZones combines Overpass names, cirques and admin fallbacks into at most max distinct zones.
func MergeZones(overpass []string, start, end Address, max int) []string {
	zones := slices.Clone(overpass)
	for _, a := range []Address{start, end} {
		if c := Cirque(a); c != "" {
			zones = append(zones, c)
		}
	}
	for _, a := range []Address{start, end} {
		zones = append(zones, a.Admin2, a.Admin1)
	}

	var kept []string
	for _, z := range zones {
		z = strings.TrimSpace(z)
		if len([]rune(z)) < minZoneRunes {
			continue
		}
		kept = append(kept, z)
	}
	out := dedupeFold(kept)
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

// Zoner derives route zones from a track and its geocoded endpoints.
type Zoner struct {
	overpass *Overpass
	max      int
}

// NewZoner creates a Zoner. overpass may be nil.
func NewZoner(overpass *Overpass, max int) *Zoner {
	if max <= 0 {
		max = 5
	}
	return &Zoner{overpass: overpass, max: max}
}

// Compute returns the zones of a route.
func (z *Zoner) Compute(ctx context.Context, track *gpx.Track, start, end Address) []string {
	var names []string
	if z.overpass != nil && track != nil {
		if b, ok := gpx.Bounds(track.Sample(sampleStep), bboxExpand); ok {
			names = z.overpass.Zones(ctx, b)
		}
	}
	return MergeZones(names, start, end, z.max)
}

func dedupeFold(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		k := strings.ToLower(s)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}

func sortByLength(s []string) {
	slices.SortStableFunc(s, func(a, b string) int {
		if la, lb := len([]rune(a)), len([]rune(b)); la != lb {
			return la - lb
		}
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	})
}
