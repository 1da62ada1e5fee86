package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ewilliams-labs/cratedigger/internal/core/domain"
)

// SaveResult stores the analysis result for a track, replacing any earlier one.
func (a *Adapter) SaveResult(ctx context.Context, result domain.NormalizedResult) error {
	analyzed := result.AnalyzedAt
	if analyzed.IsZero() {
		analyzed = a.now()
	}
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO track_analysis (
			track_id, bpm, raw_bpm, bpm_adjusted, bpm_reason, musical_key, key_confidence,
			energy, raw_energy, confidence, source_id, source_title, analyzed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(track_id) DO UPDATE SET
			bpm = excluded.bpm,
			raw_bpm = excluded.raw_bpm,
			bpm_adjusted = excluded.bpm_adjusted,
			bpm_reason = excluded.bpm_reason,
			musical_key = excluded.musical_key,
			key_confidence = excluded.key_confidence,
			energy = excluded.energy,
			raw_energy = excluded.raw_energy,
			confidence = excluded.confidence,
			source_id = excluded.source_id,
			source_title = excluded.source_title,
			analyzed_at = excluded.analyzed_at
	`,
		result.TrackID,
		result.BPM,
		result.RawBPM,
		result.BPMAdjusted,
		nullString(result.BPMReason),
		result.Key.String(),
		result.KeyConfidence,
		result.Energy,
		result.RawEnergy,
		result.Confidence,
		result.SourceID,
		nullString(result.SourceTitle),
		formatTime(analyzed),
	)
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

// GetResult loads the stored analysis for a track.
func (a *Adapter) GetResult(ctx context.Context, trackID string) (domain.NormalizedResult, error) {
	var (
		result      domain.NormalizedResult
		reason      sql.NullString
		key         string
		sourceTitle sql.NullString
		analyzedRaw sql.NullString
	)
	err := a.db.QueryRowContext(ctx, `
		SELECT track_id, bpm, raw_bpm, bpm_adjusted, bpm_reason, musical_key, key_confidence,
			energy, raw_energy, confidence, source_id, source_title, analyzed_at
		FROM track_analysis WHERE track_id = ?
	`, trackID).Scan(
		&result.TrackID,
		&result.BPM,
		&result.RawBPM,
		&result.BPMAdjusted,
		&reason,
		&key,
		&result.KeyConfidence,
		&result.Energy,
		&result.RawEnergy,
		&result.Confidence,
		&result.SourceID,
		&sourceTitle,
		&analyzedRaw,
	)
	if err != nil {
		if isNoRows(err) {
			return domain.NormalizedResult{}, fmt.Errorf("result for %s: %w", trackID, domain.ErrNotFound)
		}
		return domain.NormalizedResult{}, fmt.Errorf("failed to load result: %w", err)
	}
	result.BPMReason = reason.String
	result.SourceTitle = sourceTitle.String
	if result.Key, err = domain.ParseKey(key); err != nil {
		return domain.NormalizedResult{}, err
	}
	if result.AnalyzedAt, err = parseTime(analyzedRaw); err != nil {
		return domain.NormalizedResult{}, err
	}
	return result, nil
}

// AnalyzedBPMs returns every stored BPM.
func (a *Adapter) AnalyzedBPMs(ctx context.Context) ([]float64, error) {
	return a.floatColumn(ctx, "SELECT bpm FROM track_analysis WHERE bpm > 0")
}

// RawEnergies returns every stored raw energy except the excluded track's.
func (a *Adapter) RawEnergies(ctx context.Context, excludeTrackID string) ([]float64, error) {
	return a.floatColumn(ctx, "SELECT raw_energy FROM track_analysis WHERE track_id <> ?", excludeTrackID)
}

// RawEnergyIndex returns raw energy keyed by track id.
func (a *Adapter) RawEnergyIndex(ctx context.Context) (map[string]float64, error) {
	rows, err := a.db.QueryContext(ctx, "SELECT track_id, raw_energy FROM track_analysis")
	if err != nil {
		return nil, fmt.Errorf("failed to load raw energies: %w", err)
	}
	defer rows.Close()

	index := map[string]float64{}
	for rows.Next() {
		var (
			id  string
			raw float64
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan raw energy: %w", err)
		}
		index[id] = raw
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate raw energies: %w", err)
	}
	return index, nil
}

// UpdateEnergies rewrites the 0..10 energy of many tracks in one transaction.
func (a *Adapter) UpdateEnergies(ctx context.Context, energies map[string]int) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, "UPDATE track_analysis SET energy = ? WHERE track_id = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare energy update: %w", err)
	}
	defer stmt.Close()

	for id, energy := range energies {
		if _, err := stmt.ExecContext(ctx, energy, id); err != nil {
			return fmt.Errorf("failed to update energy for %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit energy update: %w", err)
	}
	return nil
}

func (a *Adapter) floatColumn(ctx context.Context, query string, args ...any) ([]float64, error) {
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query library stats: %w", err)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan library stats: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate library stats: %w", err)
	}
	return values, nil
}
