package cmd

import (
	"fmt"

	"github.com/canopydb/canopy/internal/record"
	"github.com/spf13/cobra"
)

var journalsCmd = &cobra.Command{
	Use:   "journals",
	Short: "List workspace journals",
	Long:  "List all workspace journals in the store with their head revisions.",
	Args:  cobra.NoArgs,
	RunE:  runJournals,
}

func init() {
	rootCmd.AddCommand(journalsCmd)
}

func runJournals(cmd *cobra.Command, args []string) error {
	rs, err := record.NewLocalStore(getStoreDir(), true)
	if err != nil {
		return err
	}

	journals, err := rs.Journals()
	if err != nil {
		return err
	}

	for _, journal := range journals {
		head, err := rs.Head(journal)
		if err != nil {
			return err
		}
		name := journal
		if name == record.RootJournal {
			name = "(root)"
		}
		fmt.Printf("%s\t%s\n", name, head)
	}

	if len(journals) == 0 {
		fmt.Println("(no journals)")
	}

	return nil
}
