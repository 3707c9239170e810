package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Vault, graph, and index statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openMemory(cmd.Context())
		if err != nil {
			return err
		}
		defer m.Close()

		st, err := m.Stats(cmd.Context(), flagUser)
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}

		fmt.Printf("Notes:     %d\n", st.Vault.TotalNotes)
		types := make([]string, 0, len(st.Vault.ByType))
		for t := range st.Vault.ByType {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Printf("  %-12s %d\n", t, st.Vault.ByType[t])
		}
		fmt.Printf("Knowledge: %d\n", st.Vault.KnowledgeEntries)
		fmt.Printf("Graph:     %d entities, %d relations, %d tags\n",
			st.Graph.Entities, st.Graph.Relations, st.Graph.Tags)
		fmt.Printf("Chunks:    %d\n", st.Chunks)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
