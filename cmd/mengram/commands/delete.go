package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <entity>",
	Short: "Remove an entity's note from the vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openMemory(cmd.Context())
		if err != nil {
			return err
		}
		defer m.Close()

		if err := m.Delete(flagUser, args[0]); err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		fmt.Printf("Deleted %q\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
