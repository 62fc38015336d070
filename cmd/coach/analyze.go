package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/callcoach/callcoach/internal/pipeline"
	"github.com/callcoach/callcoach/internal/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Score a call transcript against a coaching rubric",
	Long:  "Analyze reads a transcript JSON file, evaluates it per dimension against the requested rubric version, and prints one consolidated coaching result per dimension.",
	RunE:  runAnalyze,
}

var (
	transcriptPath string
	dimensionsFlag string
	rubricVersion  string
	callTypeFlag   string
	forceRecompute bool
	outPath        string
)

func init() {
	analyzeCmd.Flags().StringVarP(&transcriptPath, "transcript", "t", "", "Path to transcript JSON file (required)")
	analyzeCmd.Flags().StringVarP(&dimensionsFlag, "dimensions", "d", "discovery", "Comma-separated coaching dimensions")
	analyzeCmd.Flags().StringVarP(&rubricVersion, "rubric-version", "r", "v1", "Rubric version to score against")
	analyzeCmd.Flags().StringVar(&callTypeFlag, "call-type", string(types.CallTypeUnclassified), "Call type: discovery, demo, negotiation, renewal")
	analyzeCmd.Flags().BoolVar(&forceRecompute, "force", false, "Bypass cache lookup (still writes through)")
	analyzeCmd.Flags().StringVarP(&outPath, "out", "o", "", "Write results JSON to this path instead of stdout")

	_ = analyzeCmd.MarkFlagRequired("transcript")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	data, err := os.ReadFile(transcriptPath)
	if err != nil {
		return fmt.Errorf("failed to read transcript file: %w", err)
	}
	transcript, err := types.ParseTranscript(data)
	if err != nil {
		return err
	}
	if transcript.CallID == uuid.Nil {
		transcript.CallID = uuid.New()
	}

	var dimensions []string
	for _, d := range strings.Split(dimensionsFlag, ",") {
		if d = strings.TrimSpace(d); d != "" {
			dimensions = append(dimensions, d)
		}
	}

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	results, err := a.orch.Analyze(ctx, pipeline.Request{
		CallID:         transcript.CallID,
		Transcript:     transcript,
		Dimensions:     dimensions,
		RubricVersion:  rubricVersion,
		CallType:       types.CallType(callTypeFlag),
		ForceRecompute: forceRecompute,
	})
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	if outPath != "" {
		if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
			return fmt.Errorf("failed to write results: %w", err)
		}
		fmt.Printf("Wrote %d result(s) to %s\n", len(results), outPath)
		return nil
	}

	fmt.Println(string(encoded))
	return nil
}
