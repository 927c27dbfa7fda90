package view

import (
	"errors"
	"fmt"
)

var (
	ErrClosed   = errors.New("tileview: view closed")
	ErrNoCircle = errors.New("tileview: no such circle")
)

// SceneSyncError reports that the tracked composited rasters and the image
// nodes attached to the scene have diverged.
type SceneSyncError struct {
	Entries int
	Nodes   int
}

func (e *SceneSyncError) Error() string {
	return fmt.Sprintf("tileview: %d tracked rasters but %d image nodes in scene", e.Entries, e.Nodes)
}

// CommandError wraps a failure, or a recovered panic, of a queued command.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("tileview: command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }
