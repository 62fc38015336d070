package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/callcoach/callcoach/internal/cache"
)

var invalidateCmd = &cobra.Command{
	Use:   "invalidate-cache",
	Short: "Bulk-invalidate cached evaluations by dimension and/or rubric version",
	Long:  "Invalidate removes cached evaluations matching the given dimension and/or rubric version from both cache tiers. Used after revising a rubric; no transcript hashes are needed.",
	RunE:  runInvalidate,
}

var (
	invalidateDimension string
	invalidateVersion   string
)

func init() {
	invalidateCmd.Flags().StringVarP(&invalidateDimension, "dimension", "d", "", "Dimension to invalidate (empty matches all)")
	invalidateCmd.Flags().StringVarP(&invalidateVersion, "rubric-version", "r", "", "Rubric version to invalidate (empty matches all)")

	rootCmd.AddCommand(invalidateCmd)
}

func runInvalidate(cmd *cobra.Command, args []string) error {
	if invalidateDimension == "" && invalidateVersion == "" {
		return fmt.Errorf("provide --dimension and/or --rubric-version; refusing to wipe the whole cache implicitly")
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	removed, err := a.cache.Invalidate(ctx, cache.Predicate{
		Dimension:     invalidateDimension,
		RubricVersion: invalidateVersion,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Invalidated %d cached evaluation(s)\n", removed)
	return nil
}
