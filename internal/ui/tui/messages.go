// Package tui provides the Bubble Tea dashboard for deployment runs.
package tui

import "github.com/imamik/stackzner/internal/deploy"

// EventMsg carries one structured deployment event into the dashboard.
type EventMsg struct {
	Event deploy.Event
}

// ProgressMsg reports progress within a phase.
type ProgressMsg struct {
	Phase   string
	Current int
	Total   int
}

// LogMsg carries an unstructured progress line.
type LogMsg struct {
	Line string
}

// TickMsg is sent periodically to refresh the display.
type TickMsg struct{}

// ErrMsg carries an error.
type ErrMsg struct{ Err error }

// DoneMsg signals that the run is complete.
type DoneMsg struct{}
