package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"diffraxia-go/internal/config"
	"diffraxia-go/internal/eiger"
	"diffraxia-go/internal/ingest"
	"diffraxia-go/internal/output"
	"diffraxia-go/internal/simplon"
	"diffraxia-go/internal/simulator"
)

func newStreamCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stream2tiff",
		Short: "Write frames arriving on the detector stream as 32-bit TIFF files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.resolve(cmd); err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			obs, stop := a.observer(ctx)
			defer stop()

			opts := ingest.Options{
				Endpoint: a.cfg.Endpoint,
				Logger:   a.log,
				LogEvery: a.cfg.IngestLogEvery,
			}
			if a.cfg.RawLogDir != "" {
				writer, err := output.NewRawLogWriter(a.cfg.RawLogDir, "raw_cbor")
				if err != nil {
					return err
				}
				defer func() {
					if err := writer.Close(); err != nil {
						a.log.Error().Err(err).Msg("raw log close failed")
					}
				}()
				a.log.Info().Str("path", writer.Path()).Msg("recording raw stream")
				opts.Recorder = writer
			}

			var msgs <-chan ingest.Message
			if a.cfg.Debug {
				a.log.Info().Float64("rate_hz", a.cfg.DebugAcqRate).Msg("using simulated detector")
				frames := 0
				if a.cfg.Limit != nil {
					frames = *a.cfg.Limit
				}
				raw := simulator.Stream(ctx, simulator.Options{
					Rows:    a.cfg.DebugRows,
					Cols:    a.cfg.DebugCols,
					AcqRate: a.cfg.DebugAcqRate,
					Frames:  frames,
				})
				msgs = ingest.FromBytes(ctx, raw, opts)
			} else {
				if err := a.checkDetector(ctx); err != nil {
					return err
				}
				var err error
				msgs, err = ingest.Stream(ctx, opts)
				if err != nil {
					return err
				}
				a.log.Info().Str("endpoint", opts.Endpoint).Msg("connected")
			}

			conv := eiger.NewConverter(obs, a.policy())
			res, err := conv.ConvertStream(ctx, ingest.Frames(ctx, msgs), eiger.ConvertOptions{
				OutputDir: a.cfg.OutputDir,
				Limit:     a.cfg.Limit,
			})
			if err != nil {
				return err
			}
			a.log.Info().Int("images", res.Frames).Int("written", len(res.Written)).Msg("stream complete")
			return nil
		},
	}
	config.AddStreamFlags(cmd.Flags(), &a.cfg)
	return cmd
}

// checkDetector talks to the SIMPLON API when --detector-api is set: it can
// switch the stream interface on, warns when it is off, and keeps logging
// detector state changes until ctx is done.
func (a *app) checkDetector(ctx context.Context) error {
	if a.cfg.DetectorAPI == "" {
		return nil
	}
	client := simplon.NewClient(a.cfg.DetectorAPI)
	if a.cfg.EnableStream {
		if err := client.SetConfig(ctx, "stream", "mode", "enabled"); err != nil {
			return fmt.Errorf("enable detector stream: %w", err)
		}
	}
	on, err := client.StreamEnabled(ctx)
	switch {
	case err != nil:
		a.log.Warn().Err(err).Msg("could not read detector stream mode")
	case !on:
		a.log.Warn().Str("detector", a.cfg.DetectorAPI).Msg("detector stream interface is disabled, no images will arrive")
	}
	go client.Poll(ctx, a.cfg.DetectorPoll, func(st simplon.Status) {
		ev := a.log.Info()
		for _, m := range simplon.Modules {
			ev = ev.Str(m, st[m])
		}
		ev.Msg("detector status")
	})
	return nil
}
