// Package worker defines worker contracts for asynchronous rating refreshes.
package worker

import (
	"github.com/Sczr0/Phi-Backend/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithWarmer attaches a prediction cache warmer run after each refresh.
func WithWarmer(warmer Warmer) Option {
	return func(w *InMemoryWorker) {
		w.warmer = warmer
	}
}

// WithTracker attaches the pending-refresh tracker cleared per task.
func WithTracker(tracker Tracker) Option {
	return func(w *InMemoryWorker) {
		w.tracker = tracker
	}
}
