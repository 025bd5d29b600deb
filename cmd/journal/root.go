package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"smart-journal-go/pkg/client"
	"smart-journal-go/pkg/log"
	"strings"

	"github.com/spf13/cobra"
)

const defaultServerURL = "http://localhost:8080"

var (
	serverURL   string
	sessionPath string
	verbose     bool

	// api 在 PersistentPreRunE 中创建，子命令共用
	api *client.Client
)

var rootCmd = &cobra.Command{
	Use:   "journal",
	Short: "Smart Journal command-line client",
	Long: `A command-line client for the Smart Journal API.

Write journal entries, get an AI analysis of each one, browse and export
your history, and chat with Levi about what you have written.

Quick Start:
  journal auth login --email you@example.com
  journal entries write "Today I finally finished the project."
  journal entries list --from 2024-01-01
  journal chat new && journal chat send <window-id> "How was my week?"`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.Init("debug", "console", "")
		}
		path := sessionPath
		if path == "" {
			var err error
			if path, err = client.DefaultSessionPath(); err != nil {
				return fmt.Errorf("failed to resolve session path: %w", err)
			}
		}
		session, err := client.NewSession(client.NewFileStore(path))
		if err != nil {
			return err
		}
		api = client.New(serverURL, session)
		return nil
	},
}

// Execute 执行根命令，出错时以非零状态退出。
// Ctrl-C 会取消正在进行的请求。
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("Error:"), describeError(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("JOURNAL_API_URL", defaultServerURL), "Smart Journal API base URL")
	rootCmd.PersistentFlags().StringVar(&sessionPath, "session", os.Getenv("JOURNAL_SESSION_FILE"), "Session file (default: user config dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(authCmd, entriesCmd, chatCmd, profileCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// readText 把参数拼接为正文；没有参数或参数为 "-" 时从 stdin 读取。
func readText(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.TrimSpace(strings.Join(args, " ")), nil
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	text := strings.TrimSpace(string(b))
	if text == "" {
		return "", fmt.Errorf("no text given")
	}
	return text, nil
}
