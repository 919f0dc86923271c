package localmanager

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var listOptionsCmd = &cobra.Command{
	Use:   "list-options",
	Short: "List all subcommands and their flags",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		printOptions(rootCmd)
	},
}

func init() {
	rootCmd.AddCommand(listOptionsCmd)
}

// printOptions prints every subcommand name followed by the long form of
// each of its flags, sorted, all on one space separated line. Shell
// completion scripts consume this output.
func printOptions(root *cobra.Command) {
	var words []string
	for _, cmd := range root.Commands() {
		if cmd.Hidden {
			continue
		}
		words = append(words, cmd.Name())
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			words = append(words, "--"+f.Name)
		})
	}
	sort.Strings(words)
	fmt.Println(strings.Join(words, " "))
}
