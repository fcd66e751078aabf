package cmd

import (
	"fmt"

	"github.com/canopydb/canopy/internal/record"
	"github.com/spf13/cobra"
)

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints",
	Short: "List live checkpoints",
	Long:  "List all unexpired checkpoints in the store with the revisions they pin.",
	Args:  cobra.NoArgs,
	RunE:  runCheckpoints,
}

func init() {
	rootCmd.AddCommand(checkpointsCmd)
}

func runCheckpoints(cmd *cobra.Command, args []string) error {
	rs, err := record.NewLocalStore(getStoreDir(), true)
	if err != nil {
		return err
	}

	ids, err := rs.Checkpoints()
	if err != nil {
		return err
	}

	count := 0
	for _, id := range ids {
		rev, ok := rs.ReadCheckpoint(id)
		if !ok {
			continue
		}
		fmt.Printf("%s\t%s\n", id, rev)
		count++
	}

	if count == 0 {
		fmt.Println("(no checkpoints)")
	}

	return nil
}
