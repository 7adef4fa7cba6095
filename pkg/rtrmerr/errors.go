// Package rtrmerr defines the error kinds surfaced by the RTRM core (spec §7).
//
// Each kind is a sentinel error. Callers compare with errors.Is; code paths
// that need to return a kind alongside context wrap it with fmt.Errorf's
// "%w" verb, following the rest of the module's convention.
package rtrmerr

import "errors"

// Resource-identifier domain.
var (
	ErrInvalidPath   = errors.New("rtrm: invalid resource path")
	ErrNotFound      = errors.New("rtrm: not found")
	ErrAlreadyExists = errors.New("rtrm: already exists")
)

// Accounting domain.
var (
	ErrOverbooked    = errors.New("rtrm: overbooked")
	ErrAlreadyHolds  = errors.New("rtrm: schedulable already holds a request set in this view")
	ErrMissingView   = errors.New("rtrm: missing view")
	ErrTokenExhausted = errors.New("rtrm: view token space exhausted")
)

// Schedulable / workload manager domain.
var (
	ErrMissingAWM       = errors.New("rtrm: missing working mode")
	ErrAWMNotSchedulable = errors.New("rtrm: working mode not schedulable")
	ErrAppBlocking      = errors.New("rtrm: application blocking")
	ErrAppDisabled      = errors.New("rtrm: application disabled")
)

// Scheduler manager domain.
var (
	ErrPolicyMissing = errors.New("rtrm: policy missing")
	ErrPolicyFailed  = errors.New("rtrm: policy failed")
	ErrPolicyDelayed = errors.New("rtrm: policy delayed")
)

// Sync manager domain.
var (
	ErrSyncInitFailed     = errors.New("rtrm: sync session init failed")
	ErrSyncMiss           = errors.New("rtrm: sync miss")
	ErrSyncPlatformFailed = errors.New("rtrm: sync platform failed")
	ErrSyncAborted        = errors.New("rtrm: sync aborted")
)

// Workload-agent channel domain.
var (
	ErrAgentTimeout    = errors.New("rtrm: agent timeout")
	ErrAgentWriteError = errors.New("rtrm: agent write error")
	ErrVersionMismatch = errors.New("rtrm: agent version mismatch")
)

// Platform adapter domain.
var (
	ErrNotSupported = errors.New("rtrm: not supported by platform adapter")
)
