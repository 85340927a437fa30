// Package dispatch routes inbound channel messages through admission control
// and the assistant, and shapes the outbound reply.
package dispatch

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"chatrelay/pkg/access"
	"chatrelay/pkg/assistant"
	"chatrelay/pkg/bus"
	"chatrelay/pkg/history"
)

// Invoker runs one assistant request/response cycle.
type Invoker interface {
	Invoke(ctx context.Context, userKey string, text string, priorTurns []string) assistant.Result
}

// SessionController is the slice of the session store the dispatcher needs.
type SessionController interface {
	Touch(userKey string)
	Reset(userKey string) bool
}

// ChatRoster records chats the bot has seen.
type ChatRoster interface {
	Observe(chatID string, chatType string, name string)
}

// User-facing texts for outcomes that must not leak internal detail.
const (
	replyFailed   = "Sorry, I could not process your message. Please try again later."
	replyTimedOut = "The assistant took too long to respond. Please try again."
	replyEmpty    = "The assistant returned an empty response. Please try again."

	replyResetDone    = "Conversation history cleared. Your next message starts a fresh session."
	replyResetNothing = "No active conversation to reset."
)

// Dispatcher is the channel-agnostic message pipeline: roster bookkeeping,
// admission checks, command handling, assistant invocation, reply shaping.
type Dispatcher struct {
	admission *access.Controller
	invoker   Invoker
	sessions  SessionController
	history   *history.Log
	roster    ChatRoster
	log       *slog.Logger
	now       func() time.Time
}

// New builds a dispatcher. roster may be nil when chat tracking is disabled.
func New(admission *access.Controller, invoker Invoker, sessions SessionController, hist *history.Log, roster ChatRoster, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}

	return &Dispatcher{
		admission: admission,
		invoker:   invoker,
		sessions:  sessions,
		history:   hist,
		roster:    roster,
		log:       log.With("component", "dispatch"),
		now:       time.Now,
	}
}

// Dispatch handles one inbound message end to end and returns the reply. An
// empty reply Content means the adapter should stay silent.
func (d *Dispatcher) Dispatch(ctx context.Context, in bus.InboundMessage) bus.OutboundMessage {
	if d.roster != nil {
		d.roster.Observe(in.ChatID, in.ChatType, in.ChatTitle)
	}

	decision := d.admission.Decide(in.SenderID, in.SenderName, in.ChatID, utf8.RuneCountInString(in.Content), d.now())
	if !decision.Allowed {
		d.log.Warn("Message rejected",
			"kind", decision.Kind,
			"reason", decision.Reason,
			"sender_id", in.SenderID,
			"chat_id", in.ChatID,
		)
		return d.reply(in, decision.Notice)
	}

	if in.Command == "reset" {
		return d.reply(in, d.handleReset(in.SenderID))
	}

	priorTurns := d.contextTurns(in)
	result := d.invoker.Invoke(ctx, in.SenderID, in.Content, priorTurns)

	switch result.Kind {
	case assistant.ResultSuccess:
		if result.Text == "" {
			d.log.Warn("Assistant returned empty reply", "sender_id", in.SenderID)
			return d.reply(in, replyEmpty)
		}
		d.sessions.Touch(in.SenderID)
		d.history.Record(in.SenderID, "User: "+in.Content)
		d.history.Record(in.SenderID, "Assistant: "+result.Text)
		return d.reply(in, result.Text)

	case assistant.ResultTimedOut:
		d.log.Warn("Invocation timed out", "sender_id", in.SenderID, "reason", result.Reason)
		return d.reply(in, replyTimedOut)

	default:
		d.log.Error("Invocation failed",
			"kind", result.Kind,
			"failure", result.Failure,
			"reason", result.Reason,
			"sender_id", in.SenderID,
		)
		return d.reply(in, replyFailed)
	}
}

func (d *Dispatcher) handleReset(userKey string) string {
	d.history.Forget(userKey)
	if d.sessions.Reset(userKey) {
		return replyResetDone
	}

	return replyResetNothing
}

// contextTurns returns recent history only when the message replies to the
// bot, so a fresh question is not colored by an unrelated earlier exchange.
func (d *Dispatcher) contextTurns(in bus.InboundMessage) []string {
	if !in.ReplyToBot {
		return nil
	}

	return d.history.Recent(in.SenderID)
}

func (d *Dispatcher) reply(in bus.InboundMessage, content string) bus.OutboundMessage {
	return bus.OutboundMessage{
		Channel: in.Channel,
		ChatID:  in.ChatID,
		Content: content,
	}
}
