package main

import (
	"github.com/spf13/cobra"

	"diffraxia-go/internal/config"
	"diffraxia-go/internal/integrate"
)

func newIntegrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integrate",
		Short: "Integrate TIFF images into 2θ intensity tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.resolve(cmd); err != nil {
				return err
			}
			if err := a.cfg.ValidateIntegrate(); err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			obs, stop := a.observer(ctx)
			defer stop()

			opts := integrate.Options{
				Instrument:   a.cfg.Instrument,
				Folder:       a.cfg.TiffFolder,
				Pattern:      a.cfg.Pattern,
				Bins:         integrate.Bins{Min: a.cfg.TTHMin, Max: a.cfg.TTHMax, N: a.cfg.NBins},
				OutputPrefix: a.cfg.OutputPrefix,
				Plot:         a.cfg.Plot,
			}
			b := integrate.NewBatch(obs, a.policy())
			if a.cfg.Watch {
				a.log.Info().Str("folder", opts.Folder).Str("pattern", opts.Pattern).Msg("watching for images")
				return b.Watch(ctx, opts, a.cfg.Settle)
			}
			res, err := b.Run(opts)
			if err != nil {
				return err
			}
			a.log.Info().Int("files", res.Files).Int("written", len(res.Written)).Msg("integration complete")
			return nil
		},
	}
	config.AddIntegrateFlags(cmd.Flags(), &a.cfg)
	return cmd
}
