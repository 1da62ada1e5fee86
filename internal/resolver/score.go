package resolver

import (
	"strings"

	"github.com/ewilliams-labs/cratedigger/internal/core/domain"
	"github.com/ewilliams-labs/cratedigger/internal/core/ports"
)

const (
	titleWeight        = 0.70
	channelBoost       = 0.15
	durationBoost      = 0.10
	titleContainsBoost = 0.10
	penaltyKeyword     = 0.40
	durationTolerance  = 0.10
)

// DefaultRejectPhrases force a zero score: compilations, not single tracks.
var DefaultRejectPhrases = []string{
	"full album",
	"complete album",
	"álbum completo",
	"disco completo",
	"full lp",
	"entire album",
	"whole album",
	"all tracks",
	"complete discography",
	"full discography",
}

// DefaultPenaltyKeywords mark alternate versions and non-music uploads.
var DefaultPenaltyKeywords = []string{
	"live",
	"cover",
	"remix",
	"edit",
	"sped up",
	"slowed",
	"slowed + reverb",
	"nightcore",
	"acoustic",
	"instrumental",
	"karaoke",
	"tutorial",
	"how to play",
	"lesson",
	"commercial",
	"advertisement",
	"ad",
	"promo",
	"promotional",
	"jingle",
	"tv spot",
	"radio spot",
}

// DefaultTrustedChannels identify official or auto-generated artist channels.
var DefaultTrustedChannels = []string{
	"- Topic",
	"VEVO",
	"Official",
}

// Scorer rates video details against track metadata.
type Scorer struct {
	rejectPhrases   []string
	penaltyKeywords []string
	trustedChannels []string
	maxDuration     float64
}

// NewScorer folds the configured keyword lists once.
func NewScorer(cfg Config) *Scorer {
	cfg = cfg.withDefaults()
	return &Scorer{
		rejectPhrases:   foldAll(cfg.RejectPhrases),
		penaltyKeywords: foldAll(cfg.PenaltyKeywords),
		trustedChannels: foldAll(cfg.TrustedChannels),
		maxDuration:     cfg.MaxDurationSeconds,
	}
}

func foldAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if f := strings.TrimSpace(fold(s)); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Score returns a value in [0, 1]. Compilations and over-long uploads score
// zero regardless of the other signals.
func (s *Scorer) Score(track domain.TrackMetadata, video ports.VideoDetail) float64 {
	title := fold(video.Title)

	for _, phrase := range s.rejectPhrases {
		if containsPhrase(title, phrase) {
			return 0
		}
	}
	if video.DurationSeconds > s.maxDuration {
		return 0
	}

	expected := comparable(track.Artist + " " + track.Title)
	score := similarity(expected, comparable(video.Title)) * titleWeight

	channel := fold(video.ChannelName)
	for _, pattern := range s.trustedChannels {
		if strings.Contains(channel, pattern) {
			score += channelBoost
			break
		}
	}

	if track.HasDuration() && video.DurationSeconds > 0 {
		diff := video.DurationSeconds - track.DurationSeconds
		if diff < 0 {
			diff = -diff
		}
		if diff <= track.DurationSeconds*durationTolerance {
			score += durationBoost
		}
	}

	for _, keyword := range s.penaltyKeywords {
		if containsPhrase(title, keyword) {
			score -= penaltyKeyword
			break
		}
	}

	if trackTitle := fold(strings.TrimSpace(track.Title)); trackTitle != "" && strings.Contains(title, trackTitle) {
		score += titleContainsBoost
	}

	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
