package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var (
	authEmail    string
	authPassword string
	authFullName string
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Sign up, log in and out",
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create a new account",
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := promptPassword(cmd)
		if err != nil {
			return err
		}
		res, err := api.Signup(cmd.Context(), authEmail, password, authFullName)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if !res.Authenticated {
			fmt.Fprintln(out, warnStyle.Render("Account created. Confirm your email address, then run `journal auth login`."))
			return nil
		}
		fmt.Fprintf(out, "%s signed up as %s\n", successStyle.Render("✓"), authEmail)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session locally",
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := promptPassword(cmd)
		if err != nil {
			return err
		}
		res, err := api.Login(cmd.Context(), authEmail, password)
		if err != nil {
			return err
		}
		name := authEmail
		if res.User != nil && res.User.FullName != "" {
			name = res.User.FullName
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s welcome back, %s\n", successStyle.Render("✓"), name)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and forget the local session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := api.Logout(cmd.Context()); err != nil {
			// 本地会话已清除，服务端失败只提示
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", warnStyle.Render("warning:"), describeError(err))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s logged out\n", successStyle.Render("✓"))
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		session := api.Session()
		user := session.User()
		if !session.IsAuthenticated() || user == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "not logged in")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", titleStyle.Render(user.FullName), user.Email, idStyle.Render(user.ID))
		return nil
	},
}

// promptPassword 优先使用 --password，否则从输入读取一行。
func promptPassword(cmd *cobra.Command) (string, error) {
	if authEmail == "" {
		return "", fmt.Errorf("--email is required")
	}
	if authPassword != "" {
		return authPassword, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	return readLine(cmd.InOrStdin())
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("password is required")
	}
	return line, nil
}

func init() {
	for _, c := range []*cobra.Command{signupCmd, loginCmd} {
		c.Flags().StringVar(&authEmail, "email", "", "Account email")
		c.Flags().StringVar(&authPassword, "password", "", "Account password (prompted when omitted)")
	}
	signupCmd.Flags().StringVar(&authFullName, "name", "", "Display name")
	authCmd.AddCommand(signupCmd, loginCmd, logoutCmd, whoamiCmd)
}
