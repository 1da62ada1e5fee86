// Package resolver picks the single best audio source for a catalogued track
// from a video search service.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ewilliams-labs/cratedigger/internal/core/domain"
	"github.com/ewilliams-labs/cratedigger/internal/core/ports"
)

// Config tunes candidate search and scoring. Zero fields take defaults.
type Config struct {
	MaxResults         int
	DurationBucket     string
	MinScore           float64
	MaxDurationSeconds float64
	RejectPhrases      []string
	PenaltyKeywords    []string
	TrustedChannels    []string
}

// DefaultConfig returns the production scoring setup.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.MaxResults <= 0 {
		c.MaxResults = 10
	}
	if c.DurationBucket == "" {
		c.DurationBucket = "medium"
	}
	if c.MinScore <= 0 {
		c.MinScore = 0.3
	}
	if c.MaxDurationSeconds <= 0 {
		c.MaxDurationSeconds = 480
	}
	if c.RejectPhrases == nil {
		c.RejectPhrases = DefaultRejectPhrases
	}
	if c.PenaltyKeywords == nil {
		c.PenaltyKeywords = DefaultPenaltyKeywords
	}
	if c.TrustedChannels == nil {
		c.TrustedChannels = DefaultTrustedChannels
	}
	return c
}

// Resolver finds audio sources for tracks.
type Resolver struct {
	searcher ports.VideoSearcher
	scorer   *Scorer
	cfg      Config
	logger   *slog.Logger
}

// New constructs a Resolver.
func New(searcher ports.VideoSearcher, cfg Config, logger *slog.Logger) *Resolver {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		searcher: searcher,
		scorer:   NewScorer(cfg),
		cfg:      cfg,
		logger:   logger.With("component", "resolver"),
	}
}

// BuildQuery returns "<artist> - <title>", omitting empty parts.
func BuildQuery(track domain.TrackMetadata) string {
	parts := make([]string, 0, 2)
	if a := strings.TrimSpace(track.Artist); a != "" {
		parts = append(parts, a)
	}
	if t := strings.TrimSpace(track.Title); t != "" {
		parts = append(parts, t)
	}
	return strings.Join(parts, " - ")
}

// Resolve searches for the track and returns the best candidate. When no
// candidate scores above the threshold it returns a ports.NoSourceError.
func (r *Resolver) Resolve(ctx context.Context, track domain.TrackMetadata) (domain.ResolvedSource, error) {
	query := BuildQuery(track)
	if query == "" {
		return domain.ResolvedSource{}, ports.NoSourceError{Artist: track.Artist, Title: track.Title}
	}
	r.logger.Debug("searching", "query", query)

	hits, err := r.searcher.Search(ctx, ports.SearchQuery{
		Query:          query,
		Category:       "music",
		DurationBucket: r.cfg.DurationBucket,
		MaxResults:     r.cfg.MaxResults,
	})
	if err != nil {
		return domain.ResolvedSource{}, fmt.Errorf("resolver: search failed: %w", err)
	}
	if len(hits) == 0 {
		r.logger.Info("no search results", "query", query)
		return domain.ResolvedSource{}, ports.NoSourceError{Artist: track.Artist, Title: track.Title}
	}
	if len(hits) > r.cfg.MaxResults {
		hits = hits[:r.cfg.MaxResults]
	}

	ids := make([]string, 0, len(hits))
	for _, hit := range hits {
		if hit.ID != "" {
			ids = append(ids, hit.ID)
		}
	}
	details, err := r.searcher.Details(ctx, ids)
	if err != nil {
		return domain.ResolvedSource{}, fmt.Errorf("resolver: detail lookup failed: %w", err)
	}

	candidates := r.Rank(track, orderBy(ids, details))
	if len(candidates) == 0 {
		r.logger.Info("no candidate passed the score threshold", "query", query, "results", len(details))
		return domain.ResolvedSource{}, ports.NoSourceError{Artist: track.Artist, Title: track.Title}
	}

	winner := candidates[0]
	r.logger.Info("selected source",
		"source_id", winner.SourceID,
		"title", winner.Title,
		"score", winner.Score,
		"duration_seconds", winner.DurationSeconds,
	)
	return domain.ResolvedSource{
		SourceID:        winner.SourceID,
		Title:           winner.Title,
		DurationSeconds: winner.DurationSeconds,
		Confidence:      winner.Score,
	}, nil
}

// Rank scores every video and returns the survivors, best first. Equal
// scores keep their input order.
func (r *Resolver) Rank(track domain.TrackMetadata, videos []ports.VideoDetail) []domain.VideoCandidate {
	out := make([]domain.VideoCandidate, 0, len(videos))
	for _, v := range videos {
		score := r.scorer.Score(track, v)
		r.logger.Debug("scored candidate", "source_id", v.ID, "title", v.Title, "score", score)
		if score <= r.cfg.MinScore {
			continue
		}
		out = append(out, domain.VideoCandidate{
			SourceID:        v.ID,
			Title:           v.Title,
			ChannelName:     v.ChannelName,
			DurationSeconds: v.DurationSeconds,
			Score:           score,
		})
	}
	// insertion sort keeps equal scores in input order
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Score > out[j-1].Score; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// orderBy arranges details in search-rank order; unknown ids go last.
func orderBy(ids []string, details []ports.VideoDetail) []ports.VideoDetail {
	rank := make(map[string]int, len(ids))
	for i, id := range ids {
		if _, seen := rank[id]; !seen {
			rank[id] = i
		}
	}
	out := make([]ports.VideoDetail, 0, len(details))
	var unknown []ports.VideoDetail
	slots := make([]*ports.VideoDetail, len(ids))
	for i := range details {
		d := details[i]
		pos, ok := rank[d.ID]
		if !ok || slots[pos] != nil {
			unknown = append(unknown, d)
			continue
		}
		slots[pos] = &d
	}
	for _, d := range slots {
		if d != nil {
			out = append(out, *d)
		}
	}
	return append(out, unknown...)
}
