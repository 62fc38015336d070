package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/callcoach/callcoach/internal/types"
)

var uploadRubricCmd = &cobra.Command{
	Use:   "upload-rubric",
	Short: "Store a rubric definition for later analyses",
	Long:  "Upload-rubric validates a rubric JSON file and stores it as a new immutable version. Stored rubrics take precedence over the embedded defaults; existing versions are never overwritten.",
	RunE:  runUploadRubric,
}

var rubricFilePath string

func init() {
	uploadRubricCmd.Flags().StringVarP(&rubricFilePath, "file", "f", "", "Path to rubric definition JSON file (required)")
	_ = uploadRubricCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(uploadRubricCmd)
}

func runUploadRubric(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(rubricFilePath)
	if err != nil {
		return fmt.Errorf("failed to read rubric file: %w", err)
	}

	var def types.RubricDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return fmt.Errorf("failed to parse rubric JSON: %w", err)
	}
	if err := def.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	if a.store == nil {
		return fmt.Errorf("DATABASE_URL is required for upload-rubric")
	}
	if err := a.store.SaveRubric(ctx, &def); err != nil {
		return err
	}

	fmt.Printf("Stored rubric %s/%s (%d criteria)\n", def.Dimension, def.Version, len(def.Criteria))
	return nil
}
