package cmd

import (
	"fmt"
	"io"

	"github.com/mitchellh/go-wordwrap"
	"github.com/spf13/cobra"
	"github.com/thinkparq/fsstrata/usage/internal/cmdfmt"
	"github.com/thinkparq/fsstrata/usage/pkg/model"
)

const descriptionWidth = 72

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models [model]",
		Short: "List the usage models or the parameters of one model.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				listModels(cmd.OutOrStdout())
				return nil
			}
			return describeModel(cmd.OutOrStdout(), args[0])
		},
	}
}

func listModels(w io.Writer) {
	p := cmdfmt.NewPrintomatic(w, []string{"name", "description"}, []string{"name", "description"}, cmdfmt.OptionsFromViper())
	for _, name := range model.Names() {
		d, _ := model.Describe(name)
		p.AddItem(d.Name, wordwrap.WrapString(d.Description, descriptionWidth))
	}
	p.Flush()
}

func describeModel(w io.Writer, name string) error {
	d, ok := model.Describe(name)
	if !ok {
		return fmt.Errorf("unknown usage model %q (one of: %v)", name, model.Names())
	}
	cmdfmt.Printf("%s\n\n", wordwrap.WrapString(d.Description, descriptionWidth))
	p := cmdfmt.NewPrintomatic(w,
		[]string{"parameter", "type", "required", "default", "description"},
		[]string{"parameter", "type", "default", "description"},
		cmdfmt.OptionsFromViper())
	for _, param := range d.Parameters {
		def := "-"
		if !param.Required() {
			def = fmt.Sprint(param.Default)
		}
		p.AddItem(param.Key, param.Type, param.Required(), def, wordwrap.WrapString(param.Description, descriptionWidth/2))
	}
	p.Flush()
	return nil
}
