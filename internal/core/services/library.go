package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ewilliams-labs/cratedigger/internal/core/ports"
	"github.com/ewilliams-labs/cratedigger/internal/normalize"
)

// LibraryService reports and maintains library-wide energy normalization.
type LibraryService struct {
	stats  ports.LibraryStats
	index  ports.EnergyIndex
	logger *slog.Logger
}

// NewLibraryService wires the statistics and bulk-update ports.
func NewLibraryService(stats ports.LibraryStats, index ports.EnergyIndex, logger *slog.Logger) *LibraryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LibraryService{stats: stats, index: index, logger: logger}
}

// EnergyStats summarises every stored raw energy.
func (s *LibraryService) EnergyStats(ctx context.Context) (normalize.EnergyStats, error) {
	values, err := s.stats.RawEnergies(ctx, "")
	if err != nil {
		return normalize.EnergyStats{}, fmt.Errorf("library: energy stats: %w", err)
	}
	return normalize.Stats(values), nil
}

// RecalibrateEnergy recomputes every stored track's 0-10 energy from the
// retained raw energies and returns how many tracks were rewritten.
func (s *LibraryService) RecalibrateEnergy(ctx context.Context) (int, error) {
	raw, err := s.index.RawEnergyIndex(ctx)
	if err != nil {
		return 0, fmt.Errorf("library: recalibrate: %w", err)
	}
	if len(raw) == 0 {
		return 0, nil
	}
	scaled := normalize.Recalibrate(raw)
	if err := s.index.UpdateEnergies(ctx, scaled); err != nil {
		return 0, fmt.Errorf("library: recalibrate: %w", err)
	}
	s.logger.Info("energy recalibrated", slog.Int("tracks", len(scaled)))
	return len(scaled), nil
}
