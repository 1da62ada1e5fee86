package domain

import "errors"

var (
	ErrNotFound          = errors.New("domain: not found")
	ErrInvalidTransition = errors.New("domain: invalid job status transition")
	ErrActiveJobExists   = errors.New("domain: owner already has an active analysis job")
	ErrNoTracks          = errors.New("domain: no tracks to analyze")
	ErrNoSource          = errors.New("domain: no audio source found")
	ErrQueueFull         = errors.New("domain: analysis queue is full")
	ErrDecode            = errors.New("domain: audio decode failed")
)
