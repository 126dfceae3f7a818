package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"

	"studygroup-service/internal/chatclient"
)

var (
	serverURL string
	username  string
	password  string
	timeout   time.Duration
)

var rootCmd = &cobra.Command{
	Use:          "chatcli",
	Short:        "Terminal client for study group chats",
	SilenceUsage: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", envOr("STUDYGROUP_SERVER", "http://localhost:5001/api"), "API base URL")
	rootCmd.PersistentFlags().StringVarP(&username, "user", "u", os.Getenv("STUDYGROUP_USER"), "username")
	rootCmd.PersistentFlags().StringVarP(&password, "password", "p", os.Getenv("STUDYGROUP_PASSWORD"), "password")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "per-request timeout")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// login returns a transport carrying a fresh session token.
func login(ctx context.Context) (*chatclient.HTTPTransport, error) {
	if username == "" || password == "" {
		return nil, errors.New("--user and --password are required")
	}
	tr := chatclient.NewHTTPTransport(serverURL, timeout)
	if _, err := tr.Login(ctx, username, password); err != nil {
		return nil, err
	}
	return tr, nil
}
