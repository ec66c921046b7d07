// Package pipeline coordinates the two recognition passes over one recording:
// the streaming decode loop, endpoint-triggered refinement and the
// start/stop lifecycle.
package pipeline

import "errors"

var (
	// ErrRateMismatch means a block's rate differs from the session rate.
	// It indicates a wiring bug and ends the recording.
	ErrRateMismatch = errors.New("sample rate mismatch")
	// ErrEmptyBlock means a zero-length block was fed to the decoder.
	ErrEmptyBlock = errors.New("empty audio block")
	// ErrRefinementFailed wraps an engine error from the refinement pass.
	ErrRefinementFailed = errors.New("refinement failed")
	// ErrRefinementBusy is returned when a refinement is already in flight.
	ErrRefinementBusy = errors.New("refinement already in progress")
	// ErrCaptureFailed means capture reads kept failing past the threshold.
	ErrCaptureFailed = errors.New("capture failed")
	// ErrAlreadyRecording is returned by Start while a recording is active.
	ErrAlreadyRecording = errors.New("already recording")
	// ErrNotRecording is returned by Stop when idle.
	ErrNotRecording = errors.New("not recording")
)
