package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "chatrelay",
	Short: "Relay chat messages to a remote assistant",
	Long:  "ChatRelay bridges chat platforms to a remote assistant service with per-user sessions, admission control, and rate limiting.",
}

// Execute runs the root command. Called once from main.
func Execute() {
	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
