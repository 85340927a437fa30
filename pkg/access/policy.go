package access

import (
	"log/slog"
	"strings"

	"chatrelay/pkg/config"
)

const wildcard = "*"

// Policy is an immutable allow/ban snapshot evaluated per message.
type Policy struct {
	allowAllUsers bool
	allowedUsers  map[string]struct{}
	allowAllChats bool
	allowedChats  map[string]struct{}
	bannedUsers   map[string]string
	bannedChats   map[string]string
}

// ParsePolicy builds a policy from the raw access configuration.
//
// Malformed ban entries are skipped with a warning rather than failing the
// whole policy.
func ParsePolicy(cfg config.AccessConfig, log *slog.Logger) *Policy {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "access.policy")

	policy := &Policy{
		bannedUsers: parseBanList(cfg.BannedUsers, "BANNED_USERS", log),
		bannedChats: parseBanList(cfg.BannedChats, "BANNED_CHATS", log),
	}

	if strings.TrimSpace(cfg.Users) == wildcard {
		policy.allowAllUsers = true
	} else {
		policy.allowedUsers = toSet(config.ParseCSV(cfg.Users))
	}

	if strings.TrimSpace(cfg.AllowedChats) == wildcard {
		policy.allowAllChats = true
	} else {
		policy.allowedChats = toSet(config.ParseCSV(cfg.AllowedChats))
	}

	return policy
}

// UserBanReason returns the ban reason for a user ID, if banned.
func (p *Policy) UserBanReason(userID string) (string, bool) {
	reason, ok := p.bannedUsers[strings.TrimSpace(userID)]
	return reason, ok
}

// ChatBanReason returns the ban reason for a chat ID, if banned.
func (p *Policy) ChatBanReason(chatID string) (string, bool) {
	reason, ok := p.bannedChats[strings.TrimSpace(chatID)]
	return reason, ok
}

// UserAllowed reports whether a username passes the whitelist.
func (p *Policy) UserAllowed(username string) bool {
	if p.allowAllUsers {
		return true
	}

	_, ok := p.allowedUsers[strings.TrimSpace(username)]
	return ok
}

// ChatAllowed reports whether a chat ID passes the whitelist.
func (p *Policy) ChatAllowed(chatID string) bool {
	if p.allowAllChats {
		return true
	}

	_, ok := p.allowedChats[strings.TrimSpace(chatID)]
	return ok
}

// parseBanList parses "id:reason" entries separated by commas. Literal "\n"
// sequences inside reasons are unescaped to newlines.
func parseBanList(raw string, name string, log *slog.Logger) map[string]string {
	bans := make(map[string]string)
	if strings.TrimSpace(raw) == "" {
		return bans
	}

	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		id, reason, ok := strings.Cut(entry, ":")
		if !ok {
			log.Warn("Skipping malformed ban entry", "list", name, "entry", entry)
			continue
		}

		id = strings.TrimSpace(id)
		if id == "" {
			log.Warn("Skipping ban entry without id", "list", name, "entry", entry)
			continue
		}

		bans[id] = strings.TrimSpace(strings.ReplaceAll(reason, `\n`, "\n"))
	}

	return bans
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		set[value] = struct{}{}
	}

	return set
}
