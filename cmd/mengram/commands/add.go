package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Ingest text into a user's memory",
	Long: `Extract knowledge from text and merge it into the user's vault.

The LLM distills entities, facts, relations, and knowledge from the text;
the vault merge deduplicates against what is already stored.

Examples:
  mengram add "I work at Uzum Bank, backend on Spring Boot" -u ali
  mengram add "Deployed mengram to Railway with 'railway up'" -u ali`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openMemory(cmd.Context())
		if err != nil {
			return err
		}
		defer m.Close()

		res, err := m.Add(cmd.Context(), flagUser, args[0])
		if err != nil {
			return fmt.Errorf("add: %w", err)
		}

		if len(res.Created) == 0 && len(res.Updated) == 0 {
			fmt.Println("Nothing extracted.")
			return nil
		}
		if len(res.Created) > 0 {
			fmt.Printf("Created: %s\n", strings.Join(res.Created, ", "))
		}
		if len(res.Updated) > 0 {
			fmt.Printf("Updated: %s\n", strings.Join(res.Updated, ", "))
		}
		if res.KnowledgeCount > 0 {
			fmt.Printf("Knowledge entries: %d\n", res.KnowledgeCount)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
}
