package service

import "errors"

// Sentinel kinds for service-level failures. The transport layer maps these
// to status codes.
var (
	// ErrNotStarted signals an operation against a service that has not
	// been started yet.
	ErrNotStarted = errors.New("service not started")

	// ErrRefreshPending signals that the player already has a refresh in
	// flight.
	ErrRefreshPending = errors.New("refresh already pending")

	// ErrQueueFull signals that the refresh queue rejected the task.
	ErrQueueFull = errors.New("refresh queue full")

	// ErrSongNotFound signals a query that matched no song.
	ErrSongNotFound = errors.New("song not found")

	// ErrAmbiguousSong signals a query that matched more than one song.
	ErrAmbiguousSong = errors.New("ambiguous song query")
)
