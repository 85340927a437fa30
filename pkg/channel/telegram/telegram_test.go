package telegram

import (
	"strings"
	"testing"

	"github.com/mymmrac/telego"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		text      string
		command   string
		remainder string
	}{
		{"/reset", "reset", ""},
		{"/reset@relay_bot", "reset", ""},
		{"/Reset@RELAY_bot extra", "reset", "extra"},
		{"/chatinfo", "chatinfo", ""},
		{"plain text", "", "plain text"},
		{"/reset@other_bot", "", ""},
	}

	for _, tc := range cases {
		command, remainder := parseCommand(tc.text, "relay_bot")
		if command != tc.command || remainder != tc.remainder {
			t.Fatalf("parseCommand(%q) = (%q, %q), want (%q, %q)", tc.text, command, remainder, tc.command, tc.remainder)
		}
	}
}

func TestMentionsBot(t *testing.T) {
	adapter := &Adapter{botUsername: "relay_bot"}
	if !adapter.mentionsBot("hey @relay_bot, got a second?") {
		t.Fatal("expected mention to be detected")
	}
	if !adapter.mentionsBot("hey @Relay_Bot") {
		t.Fatal("expected case-insensitive mention to be detected")
	}
	if adapter.mentionsBot("no mention here") {
		t.Fatal("expected no mention")
	}

	adapter.botUsername = ""
	if adapter.mentionsBot("@anything") {
		t.Fatal("expected no mention when username unknown")
	}
}

func TestStripMention(t *testing.T) {
	adapter := &Adapter{botUsername: "relay_bot"}
	if got := adapter.stripMention("@relay_bot what is up @relay_bot"); strings.Contains(got, "@relay_bot") {
		t.Fatalf("stripMention left a mention: %q", got)
	}
	if got := adapter.stripMention("untouched"); got != "untouched" {
		t.Fatalf("stripMention = %q, want unchanged", got)
	}
}

func TestIsGroup(t *testing.T) {
	if !isGroup(telego.ChatTypeGroup) || !isGroup(telego.ChatTypeSupergroup) {
		t.Fatal("expected group chat types to be detected")
	}
	if isGroup(telego.ChatTypePrivate) {
		t.Fatal("expected private chat to not be a group")
	}
}

func TestIsReplyToBot(t *testing.T) {
	adapter := &Adapter{botID: 7}

	msg := &telego.Message{ReplyToMessage: &telego.Message{From: &telego.User{ID: 7}}}
	if !adapter.isReplyToBot(msg) {
		t.Fatal("expected reply to bot to be detected")
	}

	msg.ReplyToMessage.From.ID = 8
	if adapter.isReplyToBot(msg) {
		t.Fatal("expected reply to another user to not count")
	}

	if adapter.isReplyToBot(&telego.Message{}) {
		t.Fatal("expected non-reply to not count")
	}
}

func TestChatDisplayName(t *testing.T) {
	grp := &telego.Message{
		Chat: telego.Chat{Title: "Ops room"},
		From: &telego.User{FirstName: "Alice"},
	}
	if got := chatDisplayName(grp); got != "Ops room" {
		t.Fatalf("chatDisplayName = %q, want group title", got)
	}

	priv := &telego.Message{
		From: &telego.User{FirstName: "Alice", LastName: "Smith", Username: "alice"},
	}
	if got := chatDisplayName(priv); got != "Alice Smith (@alice)" {
		t.Fatalf("chatDisplayName = %q", got)
	}

	bare := &telego.Message{From: &telego.User{Username: "alice"}}
	if got := chatDisplayName(bare); got != "@alice" {
		t.Fatalf("chatDisplayName = %q, want @alice", got)
	}
}

func TestPreviewText(t *testing.T) {
	short := " hello "
	if got := previewText(short); got != "hello" {
		t.Fatalf("previewText short = %q, want %q", got, "hello")
	}

	long := strings.Repeat("a", messagePreviewLimit+20)
	got := previewText(long)
	if len(got) != messagePreviewLimit+3 {
		t.Fatalf("previewText long len = %d, want %d", len(got), messagePreviewLimit+3)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("previewText long = %q, want ellipsis suffix", got)
	}
}
