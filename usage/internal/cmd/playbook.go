package cmd

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/thinkparq/fsstrata/usage/internal/cmdfmt"
	"github.com/thinkparq/fsstrata/usage/pkg/operation"
	"github.com/thinkparq/fsstrata/usage/pkg/playbook"
)

func newPlaybookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playbook",
		Short: "Work with playbooks.",
	}
	cmd.AddCommand(newPlaybookValidateCmd())
	return cmd
}

func newPlaybookValidateCmd() *cobra.Command {
	var canonical bool
	cmd := &cobra.Command{
		Use:   "validate <playbook>",
		Short: "Check a playbook can be replayed.",
		Long: `Parse every line of a playbook and report the first invalid one. With --canonical the parsed
operations are printed in their canonical form, which is also how a run records them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validatePlaybook(afero.NewOsFs(), args[0], canonical, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&canonical, "canonical", false, "Print the parsed operations instead of a summary.")
	return cmd
}

func validatePlaybook(fsys afero.Fs, path string, canonical bool, w io.Writer) error {
	ops, err := playbook.ReadFile(fsys, path)
	if err != nil {
		return err
	}
	if canonical {
		for _, op := range ops {
			fmt.Fprintln(w, op.PlaybookLine())
		}
		return nil
	}
	counts := map[operation.Command]int{}
	for _, op := range ops {
		counts[op.Command()]++
	}
	cmdfmt.Printf("%s: %d valid operations\n", path, len(ops))
	p := cmdfmt.NewPrintomatic(w, []string{"command", "count"}, []string{"command", "count"}, cmdfmt.OptionsFromViper())
	for _, c := range slices.Sorted(maps.Keys(counts)) {
		p.AddItem(string(c), counts[c])
	}
	p.Flush()
	return nil
}
