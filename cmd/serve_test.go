package cmd

import (
	"context"
	"testing"

	channelpkg "chatrelay/pkg/channel"
)

type testAdapter struct{ name string }

func (a testAdapter) Name() string { return a.name }

func (a testAdapter) Run(_ context.Context, _ channelpkg.Handler) error { return nil }

func TestChannelNames(t *testing.T) {
	t.Parallel()

	adapters := []channelpkg.Adapter{testAdapter{name: "telegram"}, testAdapter{name: "slack"}}
	if got := channelNames(adapters); got != "telegram,slack" {
		t.Fatalf("channelNames = %q, want %q", got, "telegram,slack")
	}
}

func TestResolvePrompt(t *testing.T) {
	if got := resolvePrompt([]string{"hello", "world"}); got != "hello world" {
		t.Fatalf("resolvePrompt = %q, want %q", got, "hello world")
	}
	if got := resolvePrompt(nil); got != "" {
		t.Fatalf("resolvePrompt = %q, want empty", got)
	}
}

func TestIsExitCommand(t *testing.T) {
	for _, input := range []string{"exit", "QUIT", " :q "} {
		if !isExitCommand(input) {
			t.Fatalf("isExitCommand(%q) = false, want true", input)
		}
	}
	if isExitCommand("hello") {
		t.Fatal("isExitCommand(hello) = true, want false")
	}
}
