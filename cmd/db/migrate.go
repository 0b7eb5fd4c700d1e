package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, h, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				_ = h.Close()
			}()

			n, err := h.Migrate(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("Applied %d migration(s) on %s\n", n, h.Driver)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List migrations and whether each has been applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, h, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				_ = h.Close()
			}()

			all, err := h.MigrationStatus(cmd.Context())
			if err != nil {
				return err
			}

			for _, m := range all {
				state := "pending"
				if m.Applied {
					state = "applied"
				}
				fmt.Printf("%-8s %s\n", state, m.Name)
			}
			return nil
		},
	}
}
