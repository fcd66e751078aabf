package cmd

import (
	"fmt"

	"github.com/canopydb/canopy/internal/record"
	"github.com/spf13/cobra"
)

var headCmd = &cobra.Command{
	Use:   "head [workspace]",
	Short: "Show the head revision of a workspace",
	Long:  "Show the current head revision of a workspace journal, defaulting to the root journal.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHead,
}

func init() {
	rootCmd.AddCommand(headCmd)
}

func runHead(cmd *cobra.Command, args []string) error {
	journal := record.RootJournal
	if len(args) > 0 {
		journal = args[0]
	}

	rs, err := record.NewLocalStore(getStoreDir(), true)
	if err != nil {
		return err
	}

	rev, err := rs.Head(journal)
	if err != nil {
		return err
	}

	fmt.Println(rev)
	return nil
}
