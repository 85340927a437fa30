package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"chatrelay/pkg/assistant"
	"chatrelay/pkg/config"
	"chatrelay/pkg/session"
)

var promptText string

const chatUserKey = "local"

// chatCmd talks to the assistant from the terminal, useful for checking
// credentials and assistant behavior without a bot token round trip.
var chatCmd = &cobra.Command{
	Use:   "chat [prompt]",
	Short: "Send a prompt or start an interactive chat",
	Long:  "Connects to the configured assistant and sends one prompt or starts an interactive chat session.",
	Run: func(cmd *cobra.Command, args []string) {
		prompt := resolvePrompt(args)

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return
		}

		api, err := assistant.NewOpenAIClient(cfg.Assistant)
		if err != nil {
			fmt.Printf("failed to initialize assistant backend: %v\n", err)
			return
		}

		ctx := context.Background()
		if err := api.Ping(ctx); err != nil {
			fmt.Printf("assistant backend unreachable: %v\n", err)
			return
		}

		store := session.New(
			func(ctx context.Context, _ string) (string, error) { return api.CreateThread(ctx) },
			api.DeleteThread,
			cfg.SessionLifetime(),
			nil,
		)
		defer store.PurgeAll()

		invoker := assistant.NewInvoker(api, store, assistant.NewSanitizer(cfg.Sanitize), cfg.AssistantTimeout(), cfg.PollInterval(), nil)

		if prompt != "" {
			runSinglePrompt(ctx, invoker, prompt)
			return
		}

		runInteractive(ctx, invoker, store)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVarP(&promptText, "prompt", "p", "", "prompt text to send")
}

func resolvePrompt(args []string) string {
	if value := strings.TrimSpace(promptText); value != "" {
		return value
	}

	if len(args) == 0 {
		return ""
	}

	return strings.TrimSpace(strings.Join(args, " "))
}

func runSinglePrompt(ctx context.Context, invoker *assistant.Invoker, prompt string) {
	result := invoker.Invoke(ctx, chatUserKey, prompt, nil)
	if result.Kind != assistant.ResultSuccess {
		fmt.Printf("prompt failed: %s\n", result.Reason)
		return
	}

	fmt.Println(result.Text)
}

func runInteractive(ctx context.Context, invoker *assistant.Invoker, store *session.Store) {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				fmt.Printf("input error: %v\n", err)
			}
			return
		}

		prompt := strings.TrimSpace(scanner.Text())
		if prompt == "" {
			continue
		}
		if isExitCommand(prompt) {
			return
		}
		if prompt == "/reset" {
			store.Reset(chatUserKey)
			fmt.Println("session reset")
			continue
		}

		result := invoker.Invoke(ctx, chatUserKey, prompt, nil)
		if result.Kind != assistant.ResultSuccess {
			fmt.Printf("prompt failed: %s\n", result.Reason)
			continue
		}

		printAssistantMessage(result.Text)
	}
}

func printAssistantMessage(message string) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return
	}

	for _, line := range strings.Split(trimmed, "\n") {
		fmt.Printf("  %s\n", line)
	}
	fmt.Println()
}

func isExitCommand(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "exit", "quit", ":q":
		return true
	default:
		return false
	}
}
