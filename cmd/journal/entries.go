package main

import (
	"fmt"
	"os"
	"path/filepath"
	"smart-journal-go/pkg/client"

	"github.com/spf13/cobra"
)

var (
	entrySearch  string
	entryFrom    string
	entryTo      string
	exportFormat string
	exportOutput string
)

var entriesCmd = &cobra.Command{
	Use:     "entries",
	Aliases: []string{"entry"},
	Short:   "Write, list, analyze and export journal entries",
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [text|-]",
	Short: "Analyze text without saving it",
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readText(args, cmd.InOrStdin())
		if err != nil {
			return err
		}
		analysis, err := api.AnalyzeEntry(cmd.Context(), text)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderAnalysis(analysis))
		return nil
	},
}

var writeCmd = &cobra.Command{
	Use:   "write [text|-]",
	Short: "Save a journal entry and analyze it",
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readText(args, cmd.InOrStdin())
		if err != nil {
			return err
		}
		res, err := api.CreateEntry(cmd.Context(), text)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if res.Data.Entry != nil {
			fmt.Fprintf(out, "%s entry saved %s\n", successStyle.Render("✓"), idStyle.Render(res.Data.Entry.ID))
		}
		if res.Message != "" {
			fmt.Fprintln(out, warnStyle.Render(res.Message))
		}
		if res.Data.Analysis != nil {
			fmt.Fprintln(out, renderAnalysis(res.Data.Analysis))
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List entries, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := api.ListEntries(cmd.Context(), entryQuery())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(out, "No entries found.")
			return nil
		}
		fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%d entries", len(entries))))
		for _, e := range entries {
			fmt.Fprintln(out, renderEntry(e))
			fmt.Fprintln(out)
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <entry-id>",
	Short: "Delete an entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := api.DeleteEntry(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s entry deleted\n", successStyle.Render("✓"))
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export entries as JSON, Markdown or YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := api.ExportEntries(cmd.Context(), exportFormat, entryQuery())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if res.URL != "" {
			fmt.Fprintf(out, "%s %d entries exported\n%s\n", successStyle.Render("✓"), res.Entries, res.URL)
			fmt.Fprintln(out, dateStyle.Render("link expires "+res.ExpiresAt.Local().Format("2006-01-02 15:04")))
			return nil
		}
		path := exportOutput
		if path == "" {
			path = res.FileName
		}
		if path == "-" {
			_, err := out.Write(res.Body)
			return err
		}
		if path == "" {
			return fmt.Errorf("server did not name the export file, use --output")
		}
		if err := os.WriteFile(path, res.Body, 0o644); err != nil {
			return fmt.Errorf("failed to write export: %w", err)
		}
		fmt.Fprintf(out, "%s exported to %s\n", successStyle.Render("✓"), filepath.Clean(path))
		return nil
	},
}

func entryQuery() client.EntryQuery {
	return client.EntryQuery{Search: entrySearch, StartDate: entryFrom, EndDate: entryTo}
}

func init() {
	for _, c := range []*cobra.Command{listCmd, exportCmd} {
		c.Flags().StringVarP(&entrySearch, "search", "s", "", "Only entries containing this text")
		c.Flags().StringVar(&entryFrom, "from", "", "Start date (YYYY-MM-DD)")
		c.Flags().StringVar(&entryTo, "to", "", "End date, inclusive (YYYY-MM-DD)")
	}
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "Export format: json, markdown or yaml")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file, - for stdout (default: server file name)")

	entriesCmd.AddCommand(analyzeCmd, writeCmd, listCmd, deleteCmd, exportCmd)
}
