package cmd

import (
	"fmt"
	"strings"

	"github.com/canopydb/canopy"
	"github.com/spf13/cobra"
)

var lsWorkspace string

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List a node in the content tree",
	Long:  "List the properties and children of the node at path, defaulting to the root node.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLs,
}

func init() {
	lsCmd.Flags().StringVar(&lsWorkspace, "workspace", "", "workspace journal to read (default: root journal)")
	rootCmd.AddCommand(lsCmd)
}

func runLs(cmd *cobra.Command, args []string) error {
	path := "/"
	if len(args) > 0 {
		path = args[0]
	}

	rs, err := canopy.NewLocalStore(getStoreDir())
	if err != nil {
		return err
	}

	store, err := canopy.New(rs, canopy.WithWorkspace(lsWorkspace))
	if err != nil {
		return err
	}

	node := store.Root()
	for _, name := range strings.Split(strings.Trim(path, "/"), "/") {
		if name == "" {
			continue
		}
		node = node.Child(name)
	}
	if !node.Exists() {
		return fmt.Errorf("no node at %s", path)
	}

	for p := range node.Properties() {
		if p.IsArray() {
			texts := make([]string, 0, p.Size())
			for _, v := range p.Values() {
				texts = append(texts, v.Text())
			}
			fmt.Printf("%s\t%s[]\t[%s]\n", p.Name(), p.Kind(), strings.Join(texts, ", "))
			continue
		}
		fmt.Printf("%s\t%s\t%s\n", p.Name(), p.Kind(), p.Value().Text())
	}

	for name := range node.ChildNames() {
		fmt.Printf("%s/\n", name)
	}

	if node.PropertyCount() == 0 && node.ChildCount() == 0 {
		fmt.Println("(empty node)")
	}

	return nil
}
