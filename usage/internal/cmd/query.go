package cmd

import (
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thinkparq/fsstrata/common/units"
	"github.com/thinkparq/fsstrata/usage/internal/cmdfmt"
	"github.com/thinkparq/fsstrata/usage/internal/config"
	"github.com/thinkparq/fsstrata/usage/pkg/vfs"
)

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <simulation-dir> <expression>",
		Short: "List the entries of the simulated file system matching an expression.",
		Long: `List the entries of the simulated file system matching an expression. Excluded paths are never
listed because usage models cannot see them either.

Expressions can use the variables path, name, type ("file" or "dir"), size and depth and the
functions glob(pattern, path) and bytes(size). For example:

  type == "file" && size > bytes("1MiB")
  glob("**/*.jpg", path) || depth > 3`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Flags(), args[0], args[1], cmd.OutOrStdout())
		},
	}
	config.InitFlags(cmd.Flags())
	return cmd
}

func runQuery(flags *pflag.FlagSet, dir string, expression string, w io.Writer) error {
	q, err := vfs.CompileQuery(expression)
	if err != nil {
		return err
	}
	simDir, err := simulationDir(dir)
	if err != nil {
		return err
	}
	_, cfg, err := loadConfig(flags, simDir)
	if err != nil {
		return err
	}
	_, fs, err := openVFS(cfg, simDir)
	if err != nil {
		return err
	}
	entries, err := fs.Files(vfs.Filter{Predicate: q})
	if err != nil {
		return err
	}
	printEntries(w, entries)
	return nil
}

func printEntries(w io.Writer, entries []vfs.Entry) {
	p := cmdfmt.NewPrintomatic(w, []string{"path", "type", "size", "bytes"}, []string{"path", "type", "size"}, cmdfmt.OptionsFromViper())
	for _, e := range entries {
		size := "-"
		if e.Type == vfs.Regular {
			size = units.FormatSize(e.Size)
		}
		p.AddItem(e.Path, e.Type.String(), size, e.Size)
	}
	p.Flush()
}
