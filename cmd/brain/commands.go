package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forgefit/brain/internal/api"
	"github.com/forgefit/brain/internal/composer"
	"github.com/forgefit/brain/internal/config"
	"github.com/forgefit/brain/internal/gaps"
	"github.com/forgefit/brain/internal/knowledge"
	"github.com/forgefit/brain/internal/session"
)

// --- knowledge ---

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge <user-id>",
	Short: "Load and print a user's knowledge snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID := args[0]
		refresh, _ := cmd.Flags().GetString("refresh")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if refresh != "" {
			if !knowledge.Valid(knowledge.Forge(refresh)) {
				return fmt.Errorf("unknown forge %q", refresh)
			}
			resp, err := client.post(cmd.Context(), "/v1/knowledge/"+userID+"/refresh/"+refresh, nil)
			if err != nil {
				return err
			}
			resp.Body.Close()
			printSuccess("Refreshed %s", refresh)
		}

		resp, err := client.post(cmd.Context(), "/v1/knowledge/"+userID+"/load", nil)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		var snap knowledge.UserKnowledge
		if err := decodeJSON(resp, &snap); err != nil {
			return err
		}

		out, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(out))

		for _, forge := range knowledge.Forges {
			printStatus(string(forge), "%d%% complete", snap.Completeness[forge])
		}
		return nil
	},
}

// --- prompt ---

var promptCmd = &cobra.Command{
	Use:   "prompt <user-id>",
	Short: "Build and print the coach system prompt for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID := args[0]
		base, _ := cmd.Flags().GetString("base")
		active, _ := cmd.Flags().GetBool("active")
		resting, _ := cmd.Flags().GetBool("resting")

		req := api.PromptRequest{
			BasePrompt: base,
			Session:    session.State{IsActive: active},
			Activity:   composer.AppActivity{Route: "cli"},
		}
		if active {
			req.Session.Training = &session.LiveSet{IsResting: resting}
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/v1/prompt/"+userID, req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		var result api.PromptResponse
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Fprintln(os.Stdout, result.Prompt)
		printStatus("Awareness", "%s", result.Awareness)
		printStatus("Length", "%s", result.Style.Length)
		return nil
	},
}

// --- gaps ---

var gapsCmd = &cobra.Command{
	Use:   "gaps <user-id>",
	Short: "Show missing-data suggestions for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/v1/knowledge/"+args[0]+"/gaps")
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		var report gaps.Report
		if err := decodeJSON(resp, &report); err != nil {
			return err
		}

		if report.HasIncompleteProfile {
			printWarning("Profile is incomplete")
		}
		if len(report.Suggestions) == 0 {
			printSuccess("No data gaps")
			return nil
		}
		for _, s := range report.Suggestions {
			printStatus(string(s.Forge), "%s (score %.0f, %s)", s.Message, s.PriorityScore, s.Timing)
		}
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		printStatus("Port", "%d", cfg.Server.Port)
		printStatus("Data dir", "%s", cfg.Storage.DataDir)
		printStatus("Collector timeout", "%s", cfg.Brain.CollectorTimeout)
		printStatus("Gap threshold", "%d%%", cfg.Brain.GapThreshold)
		printStatus("MCP mode", "%s", cfg.Server.MCPMode)
		return nil
	},
}

func init() {
	knowledgeCmd.Flags().String("refresh", "", "refresh one forge before loading (e.g. nutrition)")
	promptCmd.Flags().String("base", "You are a fitness and nutrition coach.", "base prompt to enrich")
	promptCmd.Flags().Bool("active", false, "simulate an active training session")
	promptCmd.Flags().Bool("resting", false, "simulate a rest period (with --active)")
}
