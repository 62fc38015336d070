package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var showResultCmd = &cobra.Command{
	Use:   "show-result",
	Short: "Print stored coaching results for a call",
	Long:  "Show-result prints the stored coaching result for a call. With --dimension it prints the single result for that dimension and rubric version; without, it lists every stored result for the call, newest first.",
	RunE:  runShowResult,
}

var (
	showCallID    string
	showDimension string
	showVersion   string
)

func init() {
	showResultCmd.Flags().StringVar(&showCallID, "call-id", "", "Call UUID (required)")
	showResultCmd.Flags().StringVarP(&showDimension, "dimension", "d", "", "Dimension to show; empty lists all results for the call")
	showResultCmd.Flags().StringVarP(&showVersion, "rubric-version", "r", "v1", "Rubric version, used with --dimension")
	_ = showResultCmd.MarkFlagRequired("call-id")

	rootCmd.AddCommand(showResultCmd)
}

func runShowResult(cmd *cobra.Command, args []string) error {
	callID, err := uuid.Parse(showCallID)
	if err != nil {
		return fmt.Errorf("invalid call id %q: %w", showCallID, err)
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	if a.store == nil {
		return fmt.Errorf("DATABASE_URL is required for show-result")
	}

	var out interface{}
	if showDimension != "" {
		result, err := a.store.GetResult(ctx, callID, showDimension, showVersion)
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("no stored result for call %s dimension %s version %s", callID, showDimension, showVersion)
		}
		out = result
	} else {
		results, err := a.store.ListResults(ctx, callID)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			return fmt.Errorf("no stored results for call %s", callID)
		}
		out = results
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	fmt.Println(string(encoded))
	return nil
}
