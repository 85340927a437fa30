package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ResultKind classifies the terminal outcome of one invocation.
type ResultKind string

const (
	ResultSuccess   ResultKind = "success"
	ResultFailed    ResultKind = "failed"
	ResultTimedOut  ResultKind = "timed_out"
	ResultCancelled ResultKind = "cancelled"
)

// FailureKind identifies which step of a failed invocation broke.
type FailureKind string

const (
	FailureSessionCreation FailureKind = "session_creation_failed"
	FailureSubmission      FailureKind = "submission_failed"
	FailureRemoteRun       FailureKind = "remote_run_failed"
	FailureResultFetch     FailureKind = "result_fetch_failed"
)

// Result is the terminal outcome of one assistant invocation.
//
// Reason holds operational detail for logging; it is never shown to the end
// user.
type Result struct {
	Kind    ResultKind
	Text    string
	Failure FailureKind
	Reason  string
}

// Invocation phases, logged as the cycle advances:
// idle, session ready, submitted, polling, then one terminal result kind.
const (
	stateSessionReady = "session_ready"
	stateSubmitted    = "submitted"
	statePolling      = "polling"
)

// SessionProvider resolves a user to a live remote conversation handle.
type SessionProvider interface {
	GetOrCreate(ctx context.Context, userKey string) (string, error)
}

// Invoker drives one assistant run per call: resolve session, submit the
// message, poll until a terminal status or the deadline, sanitize the output.
type Invoker struct {
	api          API
	sessions     SessionProvider
	sanitizer    *Sanitizer
	timeout      time.Duration
	pollInterval time.Duration
	log          *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewInvoker builds an invoker. timeout bounds the whole polling phase;
// pollInterval is the cadence of status checks.
func NewInvoker(api API, sessions SessionProvider, sanitizer *Sanitizer, timeout, pollInterval time.Duration, log *slog.Logger) *Invoker {
	if log == nil {
		log = slog.Default()
	}

	return &Invoker{
		api:          api,
		sessions:     sessions,
		sanitizer:    sanitizer,
		timeout:      timeout,
		pollInterval: pollInterval,
		log:          log.With("component", "assistant.invoker"),
		now:          time.Now,
		sleep:        sleepContext,
	}
}

// Invoke runs one request/response cycle for a user message. Prior turns, if
// any, are attached as conversational context. Every failure is converted to
// a terminal Result; no error escapes this boundary.
func (v *Invoker) Invoke(ctx context.Context, userKey string, text string, priorTurns []string) Result {
	handle, err := v.sessions.GetOrCreate(ctx, userKey)
	if err != nil {
		v.log.Error("Session creation failed", "user_key", userKey, "error", err)
		return Result{Kind: ResultFailed, Failure: FailureSessionCreation, Reason: err.Error()}
	}
	v.log.Debug("Invocation state", "state", stateSessionReady, "user_key", userKey)

	if err := v.api.AddMessage(ctx, handle, composePrompt(text, priorTurns)); err != nil {
		v.log.Error("Message submission failed", "user_key", userKey, "error", err)
		return Result{Kind: ResultFailed, Failure: FailureSubmission, Reason: err.Error()}
	}

	runID, err := v.api.StartRun(ctx, handle)
	if err != nil {
		v.log.Error("Run start failed", "user_key", userKey, "error", err)
		return Result{Kind: ResultFailed, Failure: FailureSubmission, Reason: err.Error()}
	}
	submittedAt := v.now()
	v.log.Debug("Invocation state", "state", stateSubmitted, "user_key", userKey, "run_id", runID)

	v.log.Debug("Invocation state", "state", statePolling, "run_id", runID)
	for {
		runState, err := v.api.RunState(ctx, handle, runID)
		if err != nil {
			v.log.Error("Run status poll failed", "run_id", runID, "error", err)
			return Result{Kind: ResultFailed, Failure: FailureRemoteRun, Reason: err.Error()}
		}

		switch runState.Status {
		case StatusCompleted:
			return v.fetchResult(ctx, handle, runID)
		case StatusFailed, StatusExpired:
			reason := runState.FailureReason
			if reason == "" {
				reason = string(runState.Status)
			}
			v.log.Warn("Run failed remotely", "run_id", runID, "status", runState.Status, "reason", reason)
			return Result{Kind: ResultFailed, Failure: FailureRemoteRun, Reason: reason}
		case StatusCancelled:
			v.log.Warn("Run cancelled remotely", "run_id", runID)
			return Result{Kind: ResultCancelled, Reason: "run cancelled by remote service"}
		}

		if v.now().Sub(submittedAt) > v.timeout {
			// Best-effort cancel; the local outcome is TimedOut either way.
			if err := v.api.CancelRun(ctx, handle, runID); err != nil {
				v.log.Warn("Cancel after timeout failed", "run_id", runID, "error", err)
			}
			v.log.Warn("Run timed out", "run_id", runID, "timeout", v.timeout)
			return Result{Kind: ResultTimedOut, Reason: fmt.Sprintf("no terminal status within %s", v.timeout)}
		}

		if err := v.sleep(ctx, v.pollInterval); err != nil {
			return Result{Kind: ResultCancelled, Reason: "invocation interrupted: " + err.Error()}
		}
	}
}

func (v *Invoker) fetchResult(ctx context.Context, handle string, runID string) Result {
	text, err := v.api.LatestReply(ctx, handle)
	if err != nil {
		v.log.Error("Result fetch failed", "run_id", runID, "error", err)
		return Result{Kind: ResultFailed, Failure: FailureResultFetch, Reason: err.Error()}
	}

	if v.sanitizer != nil {
		text = v.sanitizer.Clean(text)
	}

	return Result{Kind: ResultSuccess, Text: text}
}

// composePrompt prepends prior turns as a context block when the inbound
// message replies to an earlier exchange.
func composePrompt(text string, priorTurns []string) string {
	if len(priorTurns) == 0 {
		return text
	}

	var b strings.Builder
	b.WriteString("Context from the earlier conversation:\n")
	for _, turn := range priorTurns {
		b.WriteString("- ")
		b.WriteString(turn)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(text)

	return b.String()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
