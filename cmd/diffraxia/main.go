package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"diffraxia-go/internal/config"
	"diffraxia-go/internal/eiger"
	"diffraxia-go/internal/logging"
	"diffraxia-go/internal/progress"
	"diffraxia-go/internal/server"
)

var longHelp = strings.TrimSpace(`
Convert Eiger HDF5 frame files to 32-bit TIFF images and reduce TIFF images to
1D powder patterns (intensity versus 2θ) using a calibrated instrument file.

Options can also be given in $HOME/.diffraxia/config.toml or as DIFFRAXIA_*
environment variables. Flags win over the environment, which wins over the file.
`)

var exampleUsage = strings.TrimSpace(`
  diffraxia eiger2tiff scan_master.h5 -o tiff_out
  diffraxia integrate --instrument ge.hexrd --tiff-folder tiff_out --output-prefix out/scan
  diffraxia stream2tiff --endpoint tcp://detector:31001 -o live -n 100
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// app carries the configuration shared by all subcommands.
type app struct {
	cfg     config.AppConfig
	cfgPath string
	log     zerolog.Logger
}

// resolve layers file and environment under the parsed flags and applies the
// log level.
func (a *app) resolve(cmd *cobra.Command) error {
	if err := config.Resolve(&a.cfg, a.cfgPath, config.ChangedFlags(cmd.Flags())); err != nil {
		return err
	}
	if err := logging.SetLevel(a.cfg.LogLevel); err != nil {
		return err
	}
	a.log = logging.Logger()
	return nil
}

func (a *app) policy() eiger.ErrorPolicy {
	if a.cfg.ContinueOnError {
		return eiger.ContinueOnError
	}
	return eiger.AbortOnError
}

// observer logs every event and, with --progress-addr, also feeds the progress
// server. The returned stop function waits for the server to shut down.
func (a *app) observer(ctx context.Context) (progress.Observer, func()) {
	logObs := progress.Log(a.log)
	if a.cfg.ProgressAddr == "" {
		return logObs, func() {}
	}
	hub := server.NewHub(256)
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.log.Info().Str("addr", a.cfg.ProgressAddr).Msg("progress server listening")
		if err := server.Run(ctx, a.cfg.ProgressAddr, hub); err != nil {
			a.log.Error().Err(err).Msg("progress server failed")
		}
	}()
	return progress.Multi(logObs, hub), func() {
		cancel()
		<-done
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: config.DefaultConfig(), log: logging.Logger()}

	root := &cobra.Command{
		Use:           "diffraxia",
		Short:         "Eiger HDF5 to TIFF conversion and 2θ powder integration",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.AddGlobalFlags(root.PersistentFlags(), &a.cfg, &a.cfgPath)

	root.AddCommand(
		newEigerCmd(a),
		newInspectCmd(a),
		newIntegrateCmd(a),
		newStreamCmd(a),
		newRawlogCmd(a),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		l := logging.Logger()
		l.Error().Err(err).Msg("failed")
		os.Exit(1)
	}
}
