package normalize

import (
	"slices"
	"strings"
)

// GenreRange is the tempo envelope for one genre.
type GenreRange struct {
	Name    string
	Min     float64
	Max     float64
	Typical []float64
}

// Contains reports whether bpm lies in [Min, Max].
func (g GenreRange) Contains(bpm float64) bool {
	return bpm >= g.Min && bpm <= g.Max
}

// Genres is checked in order and the first name found in the text wins.
// "dubstep" precedes "dub" so the longer name matches first.
var Genres = []GenreRange{
	{Name: "house", Min: 115, Max: 130, Typical: []float64{120, 125, 128}},
	{Name: "techno", Min: 120, Max: 140, Typical: []float64{128, 130, 135}},
	{Name: "disco", Min: 110, Max: 130, Typical: []float64{115, 120, 125}},
	{Name: "funk", Min: 90, Max: 120, Typical: []float64{100, 105, 110}},
	{Name: "boogie", Min: 100, Max: 125, Typical: []float64{110, 115, 120}},
	{Name: "latin", Min: 80, Max: 140, Typical: []float64{95, 100, 120}},
	{Name: "salsa", Min: 80, Max: 110, Typical: []float64{95, 100, 105}},
	{Name: "reggae", Min: 60, Max: 90, Typical: []float64{70, 75, 80}},
	{Name: "dancehall", Min: 85, Max: 110, Typical: []float64{90, 95, 100}},
	{Name: "dubstep", Min: 135, Max: 145, Typical: []float64{140, 142, 144}},
	{Name: "dub", Min: 60, Max: 90, Typical: []float64{70, 75, 80}},
	{Name: "soul", Min: 80, Max: 120, Typical: []float64{90, 95, 100}},
	{Name: "jazz", Min: 80, Max: 200, Typical: []float64{120, 140, 160}},
	{Name: "hiphop", Min: 70, Max: 110, Typical: []float64{85, 90, 95}},
	{Name: "trap", Min: 130, Max: 170, Typical: []float64{140, 145, 150}},
	{Name: "drum and bass", Min: 160, Max: 180, Typical: []float64{170, 174, 175}},
	{Name: "garage", Min: 130, Max: 140, Typical: []float64{132, 135, 138}},
	{Name: "afrobeat", Min: 100, Max: 130, Typical: []float64{110, 115, 120}},
	{Name: "samba", Min: 150, Max: 200, Typical: []float64{170, 180, 190}},
}

// GenreText is the metadata searched for a genre keyword.
type GenreText struct {
	TrackTitle   string
	ReleaseTitle string
	Hints        []string
}

// DetectGenre returns the first genre whose name occurs in the text.
func DetectGenre(text GenreText) (GenreRange, bool) {
	all := strings.ToLower(text.TrackTitle + " " + text.ReleaseTitle + " " + strings.Join(text.Hints, " "))
	i := slices.IndexFunc(Genres, func(g GenreRange) bool {
		return strings.Contains(all, g.Name)
	})
	if i < 0 {
		return GenreRange{}, false
	}
	return Genres[i], true
}

// nearest returns the value in set closest to v; earlier entries win ties.
func nearest(set []float64, v float64) float64 {
	best := set[0]
	for _, s := range set[1:] {
		if abs(s-v) < abs(best-v) {
			best = s
		}
	}
	return best
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
