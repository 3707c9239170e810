package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantic search with structured results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topK, _ := cmd.Flags().GetInt("top-k")

		m, err := openMemory(cmd.Context())
		if err != nil {
			return err
		}
		defer m.Close()

		rows, err := m.Search(cmd.Context(), flagUser, args[0], topK)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}
		if len(rows) == 0 {
			fmt.Println("No results found.")
			return nil
		}

		fmt.Printf("Found %d result(s):\n\n", len(rows))
		for i, r := range rows {
			fmt.Printf("  %d. [score=%.2f] %s (%s)\n", i+1, r.Score, r.Entity, r.Type)
			for _, f := range r.Facts {
				fmt.Printf("     - %s\n", f)
			}
			for _, rel := range r.Relations {
				fmt.Printf("     → %s: %s\n", rel.Type, rel.Target)
			}
			if len(r.Knowledge) > 0 {
				fmt.Printf("     knowledge: %s\n", strings.Join(r.Knowledge, "; "))
			}
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().Int("top-k", 5, "max results")
	rootCmd.AddCommand(searchCmd)
}
