// Package access decides whether an inbound message may reach the assistant.
package access

import (
	"fmt"
	"time"
)

// RejectKind identifies which admission check failed.
type RejectKind string

const (
	RejectBannedChat     RejectKind = "banned_chat"
	RejectBannedUser     RejectKind = "banned_user"
	RejectChatNotAllowed RejectKind = "chat_not_allowed"
	RejectUserNotAllowed RejectKind = "user_not_allowed"
	RejectTooLong        RejectKind = "message_too_long"
	RejectRateLimited    RejectKind = "rate_limited"
)

// Decision is the outcome of one admission evaluation.
//
// Reason is an operational detail for logging; Notice is the user-visible
// text and is empty when the rejection should stay silent.
type Decision struct {
	Allowed bool
	Kind    RejectKind
	Reason  string
	Notice  string
}

// Controller evaluates the fixed admission check sequence over one message.
type Controller struct {
	policy    *Policy
	limiter   *RateLimiter
	maxLength int
	window    time.Duration
	notify    bool
}

// NewController builds an admission controller over an immutable policy
// snapshot and a shared rate limiter.
func NewController(policy *Policy, limiter *RateLimiter, maxLength int, window time.Duration, notify bool) *Controller {
	return &Controller{
		policy:    policy,
		limiter:   limiter,
		maxLength: maxLength,
		window:    window,
		notify:    notify,
	}
}

// Decide runs the admission checks in fixed order and short-circuits on the
// first failure: banned chat, banned user, chat whitelist, user whitelist,
// message length, rate limit.
//
// Ban rejections always carry a user-visible notice with the ban reason.
// Whitelist, length, and rate rejections stay silent unless notices are
// enabled, so unauthorized probing does not reveal the bot.
func (c *Controller) Decide(userID, username, chatID string, messageLength int, now time.Time) Decision {
	if reason, banned := c.policy.ChatBanReason(chatID); banned {
		return Decision{
			Kind:   RejectBannedChat,
			Reason: fmt.Sprintf("chat banned: %s", reason),
			Notice: fmt.Sprintf("This chat is blocked.\n\nReason: %s", reason),
		}
	}

	if reason, banned := c.policy.UserBanReason(userID); banned {
		return Decision{
			Kind:   RejectBannedUser,
			Reason: fmt.Sprintf("user banned: %s", reason),
			Notice: fmt.Sprintf("You are blocked.\n\nReason: %s", reason),
		}
	}

	if !c.policy.ChatAllowed(chatID) {
		return Decision{
			Kind:   RejectChatNotAllowed,
			Reason: "chat not allowed",
			Notice: c.notice("This chat does not have access to the bot."),
		}
	}

	if !c.policy.UserAllowed(username) {
		return Decision{
			Kind:   RejectUserNotAllowed,
			Reason: "user not allowed",
			Notice: c.notice("You do not have access to the bot."),
		}
	}

	if messageLength > c.maxLength {
		return Decision{
			Kind:   RejectTooLong,
			Reason: fmt.Sprintf("message length %d exceeds %d", messageLength, c.maxLength),
			Notice: c.notice(fmt.Sprintf("Message is too long. Maximum: %d characters.", c.maxLength)),
		}
	}

	if !c.limiter.Allow(userID, now) {
		return Decision{
			Kind:   RejectRateLimited,
			Reason: "rate limited",
			Notice: c.notice(fmt.Sprintf("Too many messages. Please wait a bit (%d sec).", int(c.window.Seconds()))),
		}
	}

	return Decision{Allowed: true}
}

func (c *Controller) notice(text string) string {
	if !c.notify {
		return ""
	}

	return text
}
