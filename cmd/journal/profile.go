package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or update your profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := api.ProfileStats(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		name := stats.FullName
		if name == "" {
			name = "(no name set)"
		}
		fmt.Fprintln(out, headerStyle.Render(name))
		fmt.Fprintf(out, "%s %d\n", labelStyle.Render("Entries:"), stats.TotalEntries)
		since := stats.MemberSince
		if since == "" {
			since = "no entries yet"
		}
		fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Journaling since:"), since)
		return nil
	},
}

var setNameCmd = &cobra.Command{
	Use:   "set-name <full name>",
	Short: "Change your display name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := api.UpdateProfile(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s name set to %s\n", successStyle.Render("✓"), user.FullName)
		return nil
	},
}

func init() {
	profileCmd.AddCommand(setNameCmd)
}
