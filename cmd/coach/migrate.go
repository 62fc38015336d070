package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the analysis tables if they do not exist",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	if a.store == nil {
		return fmt.Errorf("DATABASE_URL is required for migrate")
	}
	if err := a.store.Migrate(ctx); err != nil {
		return err
	}

	fmt.Println("Migration complete")
	return nil
}
