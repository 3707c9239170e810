package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alibaizhanov/mengram/pkg/brain"
)

var getCmd = &cobra.Command{
	Use:   "get <entity>",
	Short: "Show one entity's facts and relations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openMemory(cmd.Context())
		if err != nil {
			return err
		}
		defer m.Close()

		item, err := m.Get(cmd.Context(), flagUser, args[0])
		if err != nil {
			return fmt.Errorf("get: %w", err)
		}
		printItem(item)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every entity in the user's vault",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openMemory(cmd.Context())
		if err != nil {
			return err
		}
		defer m.Close()

		items, err := m.GetAll(cmd.Context(), flagUser)
		if err != nil {
			return fmt.Errorf("list: %w", err)
		}
		if len(items) == 0 {
			fmt.Println("Vault is empty.")
			return nil
		}
		for _, item := range items {
			fmt.Printf("%s (%s) — %d fact(s), %d relation(s)\n",
				item.Name, item.Type, len(item.Facts), len(item.Relations))
		}
		return nil
	},
}

func printItem(item *brain.Item) {
	fmt.Printf("%s (%s)\n", item.Name, item.Type)
	if len(item.Facts) > 0 {
		fmt.Println("Facts:")
		for _, f := range item.Facts {
			fmt.Printf("  - %s\n", f)
		}
	}
	if len(item.Relations) > 0 {
		fmt.Println("Relations:")
		for _, r := range item.Relations {
			fmt.Printf("  %s → %s (%s)\n", r.Type, r.Target, r.TargetType)
		}
	}
	if item.SourceFile != "" {
		fmt.Printf("Source: %s\n", item.SourceFile)
	}
}

func init() {
	rootCmd.AddCommand(getCmd, listCmd)
}
