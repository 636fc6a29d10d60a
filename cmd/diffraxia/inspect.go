package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"diffraxia-go/internal/config"
	"diffraxia-go/internal/eiger"
	"diffraxia-go/internal/h5"
)

func newInspectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <h5file>",
		Short: "List the frames of an Eiger HDF5 file without converting them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.resolve(cmd); err != nil {
				return err
			}
			f, err := h5.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			infos, err := eiger.Inspect(f.Root(), a.cfg.Group, a.cfg.Limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FRAME\tLAYOUT\tSHAPE\tDTYPE\tELEM\tCOMPRESSION\tBYTES\tERROR")
			for _, info := range infos {
				errText := ""
				if info.Err != nil {
					errText = info.Err.Error()
				}
				fmt.Fprintf(tw, "%s\t%s\t%dx%d\t%s\t%d\t%s\t%d\t%s\n",
					info.Key, info.Layout, info.Shape[0], info.Shape[1], info.DType,
					info.ElemSize, info.Compression, info.Bytes, errText)
			}
			return tw.Flush()
		},
	}
	config.AddInspectFlags(cmd.Flags(), &a.cfg)
	return cmd
}
