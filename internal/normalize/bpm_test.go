package normalize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ewilliams-labs/cratedigger/internal/normalize"
)

func TestNormalizeBPM(t *testing.T) {
	tests := []struct {
		name         string
		in           normalize.BPMInput
		wantBPM      int
		wantAdjusted bool
		wantReason   string
	}{
		{
			name: "half-time house track is doubled",
			in: normalize.BPMInput{
				RawBPM: 65, Confidence: 0.6,
				Genre: normalize.GenreText{ReleaseTitle: "Deep House Sessions"},
			},
			wantBPM: 130, wantAdjusted: true, wantReason: normalize.ReasonDoubled,
		},
		{
			name: "confident slow reggae is trusted",
			in: normalize.BPMInput{
				RawBPM: 72, Confidence: 0.9,
				Genre: normalize.GenreText{Hints: []string{"Reggae", "Roots"}},
			},
			wantBPM: 72, wantAdjusted: false, wantReason: normalize.ReasonOriginal,
		},
		{
			name: "double-time drum and bass stays when in range",
			in: normalize.BPMInput{
				RawBPM: 174, Confidence: 0.7,
				Genre: normalize.GenreText{Hints: []string{"Drum and Bass"}},
			},
			wantBPM: 174, wantAdjusted: false, wantReason: normalize.ReasonOriginal,
		},
		{
			name: "double-time hiphop is halved",
			in: normalize.BPMInput{
				RawBPM: 180, Confidence: 0.6,
				Genre: normalize.GenreText{TrackTitle: "Hiphop Classic"},
			},
			wantBPM: 90, wantAdjusted: true, wantReason: normalize.ReasonHalved,
		},
		{
			name: "detector alternate wins with genre support",
			in: normalize.BPMInput{
				RawBPM: 96, Confidence: 0.7, Candidates: []float64{96, 128},
				Genre: normalize.GenreText{Hints: []string{"techno"}},
			},
			wantBPM: 128, wantAdjusted: true, wantReason: normalize.ReasonAlternate,
		},
		{
			name: "no genre keeps a common tempo",
			in: normalize.BPMInput{
				RawBPM: 120, Confidence: 0.9, Candidates: []float64{60, 120},
			},
			wantBPM: 120, wantAdjusted: false, wantReason: normalize.ReasonOriginal,
		},
		{
			name: "library median breaks the octave tie",
			in: normalize.BPMInput{
				RawBPM: 70, Confidence: 0.6,
				LibraryMedian: 138, HasLibraryMedian: true,
			},
			wantBPM: 140, wantAdjusted: true, wantReason: normalize.ReasonDoubled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalize.NormalizeBPM(tt.in)
			assert.Equal(t, tt.wantBPM, got.BPM)
			assert.Equal(t, tt.wantAdjusted, got.WasAdjusted)
			assert.Equal(t, tt.wantReason, got.Reason)
		})
	}
}

func TestNormalizeBPMIsIdempotent(t *testing.T) {
	inputs := []normalize.BPMInput{
		{RawBPM: 65, Confidence: 0.6, Genre: normalize.GenreText{Hints: []string{"house"}}},
		{RawBPM: 180, Confidence: 0.6, Genre: normalize.GenreText{Hints: []string{"hiphop"}}},
		{RawBPM: 87, Confidence: 0.7, Candidates: []float64{87, 174}, Genre: normalize.GenreText{Hints: []string{"drum and bass"}}},
		{RawBPM: 124, Confidence: 0.9},
	}
	for _, in := range inputs {
		first := normalize.NormalizeBPM(in)
		again := in
		again.RawBPM = float64(first.BPM)
		second := normalize.NormalizeBPM(again)
		assert.Equal(t, first.BPM, second.BPM, "raw %v", in.RawBPM)
		assert.False(t, second.WasAdjusted, "raw %v", in.RawBPM)
	}
}

func TestDetectGenre(t *testing.T) {
	tests := []struct {
		name string
		text normalize.GenreText
		want string
		ok   bool
	}{
		{name: "release title", text: normalize.GenreText{ReleaseTitle: "Chicago HOUSE Classics"}, want: "house", ok: true},
		{name: "longer name before its prefix", text: normalize.GenreText{Hints: []string{"Dubstep"}}, want: "dubstep", ok: true},
		{name: "dub alone", text: normalize.GenreText{Hints: []string{"Dub", "Roots"}}, want: "dub", ok: true},
		{name: "multi word genre", text: normalize.GenreText{TrackTitle: "Liquid Drum and Bass mix"}, want: "drum and bass", ok: true},
		{name: "nothing", text: normalize.GenreText{TrackTitle: "Untitled"}, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, ok := normalize.DetectGenre(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, g.Name)
		})
	}
}

func TestMedian(t *testing.T) {
	_, ok := normalize.Median(nil)
	assert.False(t, ok)

	m, ok := normalize.Median([]float64{128, 90, 120})
	assert.True(t, ok)
	assert.Equal(t, 120.0, m)

	m, _ = normalize.Median([]float64{100, 90, 120, 130})
	assert.Equal(t, 110.0, m)
}
