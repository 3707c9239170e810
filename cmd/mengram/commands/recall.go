package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var recallCmd = &cobra.Command{
	Use:   "recall <query>",
	Short: "Assembled context for an agent prompt",
	Long: `Run the hybrid search and print the assembled context block:
relevant note fragments first, then related entities from the knowledge
graph. The output is meant to be pasted into an agent's system prompt.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topK, _ := cmd.Flags().GetInt("top-k")

		m, err := openMemory(cmd.Context())
		if err != nil {
			return err
		}
		defer m.Close()

		out, err := m.Recall(cmd.Context(), flagUser, args[0], topK)
		if err != nil {
			return fmt.Errorf("recall: %w", err)
		}
		if out == "" {
			fmt.Println("No relevant memories.")
			return nil
		}
		fmt.Println(out)
		return nil
	},
}

func init() {
	recallCmd.Flags().Int("top-k", 5, "max direct matches")
	rootCmd.AddCommand(recallCmd)
}
