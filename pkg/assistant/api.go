// Package assistant drives request/response cycles against the remote
// assistant service.
package assistant

import "context"

// RunStatus is the lifecycle status of one remote assistant run.
type RunStatus string

const (
	StatusQueued         RunStatus = "queued"
	StatusInProgress     RunStatus = "in_progress"
	StatusRequiresAction RunStatus = "requires_action"
	StatusCancelling     RunStatus = "cancelling"
	StatusCancelled      RunStatus = "cancelled"
	StatusCompleted      RunStatus = "completed"
	StatusFailed         RunStatus = "failed"
	StatusExpired        RunStatus = "expired"
)

// Terminal reports whether the status ends the run lifecycle.
func (s RunStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusExpired:
		return true
	default:
		return false
	}
}

// RunState is a point-in-time snapshot of one remote run.
type RunState struct {
	Status        RunStatus
	FailureReason string
}

// API is the remote assistant capability surface consumed by the invoker and
// the session store.
type API interface {
	// Ping verifies the backend is reachable and credentials work.
	Ping(ctx context.Context) error
	// CreateThread starts a new remote conversation and returns its handle.
	CreateThread(ctx context.Context) (string, error)
	// DeleteThread removes a remote conversation. Best-effort.
	DeleteThread(ctx context.Context, threadID string) error
	// AddMessage appends a user message to the conversation.
	AddMessage(ctx context.Context, threadID string, text string) error
	// StartRun begins one assistant invocation and returns the run ID.
	StartRun(ctx context.Context, threadID string) (string, error)
	// RunState fetches the current status of a run.
	RunState(ctx context.Context, threadID string, runID string) (RunState, error)
	// CancelRun requests cancellation of a run. Best-effort.
	CancelRun(ctx context.Context, threadID string, runID string) error
	// LatestReply returns the newest assistant message text in the thread.
	LatestReply(ctx context.Context, threadID string) (string, error)
}
