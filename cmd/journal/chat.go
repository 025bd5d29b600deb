package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk with Levi about your journal",
}

var chatNewCmd = &cobra.Command{
	Use:   "new [title]",
	Short: "Open a new chat window",
	RunE: func(cmd *cobra.Command, args []string) error {
		window, err := api.CreateWindow(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", titleStyle.Render(window.Title), idStyle.Render(window.ID))
		return nil
	},
}

var chatListCmd = &cobra.Command{
	Use:   "list",
	Short: "List chat windows, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		windows, err := api.ListWindows(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(windows) == 0 {
			fmt.Fprintln(out, "No chat windows yet. Start one with `journal chat new`.")
			return nil
		}
		for _, w := range windows {
			fmt.Fprintf(out, "%s  %s  %s\n", titleStyle.Render(w.Title), dateStyle.Render(w.LastUpdated.Local().Format("2006-01-02 15:04")), idStyle.Render(w.ID))
		}
		return nil
	},
}

var chatHistoryCmd = &cobra.Command{
	Use:   "history <window-id>",
	Short: "Show the messages of a chat window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		msgs, err := api.History(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, m := range msgs {
			fmt.Fprintf(out, "%s %s\n%s\n\n", speaker(string(m.Role)), dateStyle.Render(m.CreatedAt.Local().Format("15:04")), bodyStyle.Render(m.Content))
		}
		return nil
	},
}

var chatRenameCmd = &cobra.Command{
	Use:   "rename <window-id> <title>",
	Short: "Rename a chat window",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := api.RenameWindow(cmd.Context(), args[0], strings.Join(args[1:], " ")); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s renamed\n", successStyle.Render("✓"))
		return nil
	},
}

var chatDeleteCmd = &cobra.Command{
	Use:   "delete <window-id>",
	Short: "Delete a chat window and its messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := api.DeleteWindow(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s chat window deleted\n", successStyle.Render("✓"))
		return nil
	},
}

var chatSendCmd = &cobra.Command{
	Use:   "send <window-id> [message|-]",
	Short: "Send one message and stream the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message, err := readText(args[1:], cmd.InOrStdin())
		if err != nil {
			return err
		}
		return streamReply(cmd, args[0], message)
	},
}

var chatTalkCmd = &cobra.Command{
	Use:   "talk <window-id>",
	Short: "Interactive conversation, one message per line (Ctrl-D to quit)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return talk(cmd, args[0], cmd.InOrStdin())
	},
}

func talk(cmd *cobra.Command, windowID string, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	errOut := cmd.ErrOrStderr()
	for {
		fmt.Fprint(errOut, userMessageStyle.Render("you> "))
		if !scanner.Scan() {
			fmt.Fprintln(errOut)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := streamReply(cmd, windowID, line); err != nil {
			return err
		}
	}
}

// streamReply 把回复 token 逐个写到输出。
func streamReply(cmd *cobra.Command, windowID, message string) error {
	out := cmd.OutOrStdout()
	fmt.Fprint(out, speaker("assistant")+" ")
	err := api.Chat(cmd.Context(), windowID, message, func(token string) error {
		_, err := io.WriteString(out, token)
		return err
	})
	fmt.Fprintln(out)
	return err
}

func speaker(role string) string {
	if role == "user" {
		return userMessageStyle.Render("You:")
	}
	return assistantMessageStyle.Render("Levi:")
}

func init() {
	chatCmd.AddCommand(chatNewCmd, chatListCmd, chatHistoryCmd, chatRenameCmd, chatDeleteCmd, chatSendCmd, chatTalkCmd)
}
