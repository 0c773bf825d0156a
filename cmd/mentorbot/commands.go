package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mentorlab/mentorbot/internal/config"
	"github.com/mentorlab/mentorbot/internal/storage"
)

// --- import ---

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import suggestions into the knowledge base",
	Long: `Import suggestions into the knowledge base.

Accepts a JSON file (array of {id, keyword, text, link}) or a PDF whose
lines are "keyword | text | link". Records whose link already exists are
skipped.

Examples:
  mentorbot import --file suggestions.json
  mentorbot import --file resources.pdf`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			return fmt.Errorf("--file is required")
		}

		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}

		contentType := "application/json"
		if strings.EqualFold(filepath.Ext(file), ".pdf") {
			contentType = "application/pdf"
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.postRaw(cmd.Context(), "/import", contentType, data)
		if err != nil {
			return err
		}

		var result map[string]int
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Imported %d of %d suggestions (duplicates skipped)", result["added"], result["received"])
		return nil
	},
}

// --- suggestions ---

var suggestionsCmd = &cobra.Command{
	Use:   "suggestions",
	Short: "List the knowledge base, best-ranked first",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/suggestions")
		if err != nil {
			return err
		}

		var recs []storage.Suggestion
		if err := decodeJSON(resp, &recs); err != nil {
			return err
		}

		if len(recs) == 0 {
			fmt.Println("knowledge base is empty")
			return nil
		}
		for _, rec := range recs {
			fmt.Printf("%-40s  %-20s  %4d  %s\n", rec.ID, rec.Keyword, rec.Score, rec.Link)
		}
		return nil
	},
}

// --- errors ---

var errorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "Show recent ERROR health events",
	RunE: func(cmd *cobra.Command, args []string) error {
		hours, _ := cmd.Flags().GetInt("hours")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/errors?hours=%d", hours))
		if err != nil {
			return err
		}

		var events []storage.HealthEvent
		if err := decodeJSON(resp, &events); err != nil {
			return err
		}

		if len(events) == 0 {
			printSuccess("no errors in the last %dh", hours)
			return nil
		}
		for _, ev := range events {
			fmt.Printf("%s  %-12s  %s\n", ev.CreatedAt.Format(time.RFC3339), ev.Component, ev.Message)
		}
		return nil
	},
}

func init() {
	importCmd.Flags().String("file", "", "JSON or PDF file to import")
	errorsCmd.Flags().Int("hours", 24, "how far back to look")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			// Show what we can even when required values are missing.
			printWarning("%v", err)
			cfg = config.Config{}
		}
		for _, info := range config.ShowAll(cfg) {
			fmt.Printf("%-30s %-42s %s\n", info.Key, info.Value, info.EnvVar)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetKey(args[0], args[1]); err != nil {
			return err
		}
		printSuccess("set %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
