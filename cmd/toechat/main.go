// Package main provides the toechat CLI application entry point.
// toechat is a terminal client for an interview-practice assistant: it chats
// with the remote AI, manages conversation sessions, and tracks plan usage.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"toechat/internal/logger"
	"toechat/internal/version"
)

var (
	logLevel string
	logFile  string
	testMode bool
	category string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "toechat",
	Short: "toechat - terminal client for interview practice chats",
	Long: `toechat is a terminal client for an interview-practice assistant.
It sends messages with optimistic local echo, reconciles them against the
server's authoritative transcript, and gates sends on your plan's usage quota.`,
	RunE: runChat, // Default behavior is the interactive chat
}

// chatCmd represents the chat command (explicit version of default behavior)
var chatCmd = &cobra.Command{
	Use:   "chat [session-id]",
	Short: "Start an interactive chat",
	Long: `Start an interactive chat. With a session identifier the conversation is
resumed; without one a new session is created on the first send.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChat,
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println(version.GetFormattedVersion())
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Set log level (debug|info|warn|error) [default: info]")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to file instead of stderr")
	rootCmd.PersistentFlags().BoolVar(&testMode, "test-mode", false, "Run in deterministic test mode")
	rootCmd.PersistentFlags().StringVar(&category, "category", "", "Session category (normal|interview)")

	// Bind flags to viper
	if err := viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding log-level flag: %v\n", err)
		os.Exit(1)
	}
	if err := viper.BindPFlag("log-file", rootCmd.PersistentFlags().Lookup("log-file")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding log-file flag: %v\n", err)
		os.Exit(1)
	}
	if err := viper.BindPFlag("test-mode", rootCmd.PersistentFlags().Lookup("test-mode")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding test-mode flag: %v\n", err)
		os.Exit(1)
	}
	if err := viper.BindPFlag("category", rootCmd.PersistentFlags().Lookup("category")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding category flag: %v\n", err)
		os.Exit(1)
	}

	// Add subcommands
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(usageCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(versionCmd)

	// Configure logger before any command execution
	cobra.OnInitialize(initLogging)
}

func initLogging() {
	if err := logger.Configure(logLevel, logFile, testMode); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
		os.Exit(1)
	}
}
