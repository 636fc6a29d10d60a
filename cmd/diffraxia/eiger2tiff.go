package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"diffraxia-go/internal/config"
	"diffraxia-go/internal/eiger"
)

func newEigerCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eiger2tiff <h5file>",
		Short: "Convert Eiger HDF5 frames to 32-bit TIFF files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.resolve(cmd); err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			obs, stop := a.observer(ctx)
			defer stop()

			conv := eiger.NewConverter(obs, a.policy())
			res, err := conv.ConvertFile(args[0], eiger.ConvertOptions{
				Group:     a.cfg.Group,
				OutputDir: a.cfg.OutputDir,
				Limit:     a.cfg.Limit,
			})
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			a.log.Info().Int("frames", res.Frames).Int("written", len(res.Written)).
				Str("output", a.cfg.OutputDir).Msg("conversion complete")
			return nil
		},
	}
	config.AddEigerFlags(cmd.Flags(), &a.cfg)
	return cmd
}
