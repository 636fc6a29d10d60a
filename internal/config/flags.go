package config

import (
	"fmt"
	"strconv"

	pflag "github.com/spf13/pflag"
)

func AddGlobalFlags(fs *pflag.FlagSet, cfg *AppConfig, cfgPath *string) {
	fs.StringVar(cfgPath, "config", "", "TOML config file (default $HOME/.diffraxia/config.toml)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (trace, debug, info, warn, error)")
	fs.StringVar(&cfg.ProgressAddr, "progress-addr", cfg.ProgressAddr, "Serve progress over HTTP/websocket on this address, e.g. :8888")
}

func AddEigerFlags(fs *pflag.FlagSet, cfg *AppConfig) {
	fs.StringVarP(&cfg.Group, "group", "g", cfg.Group, "Top-level HDF5 group containing frames")
	fs.StringVarP(&cfg.OutputDir, "output-folder", "o", cfg.OutputDir, "Output folder for TIFF images")
	fs.VarP(&optionalInt{p: &cfg.Limit}, "nframes", "n", "Convert only the first N frames (default all)")
	fs.BoolVar(&cfg.ContinueOnError, "continue-on-error", cfg.ContinueOnError, "Keep going after a failed frame and report all failures at the end")
}

func AddInspectFlags(fs *pflag.FlagSet, cfg *AppConfig) {
	fs.StringVarP(&cfg.Group, "group", "g", cfg.Group, "Top-level HDF5 group containing frames")
	fs.VarP(&optionalInt{p: &cfg.Limit}, "nframes", "n", "List only the first N frames (default all)")
}

func AddIntegrateFlags(fs *pflag.FlagSet, cfg *AppConfig) {
	fs.StringVar(&cfg.Instrument, "instrument", cfg.Instrument, "Calibrated instrument file (.hexrd, .h5, .yml, .toml)")
	fs.StringVar(&cfg.TiffFolder, "tiff-folder", cfg.TiffFolder, "Folder containing TIFF images")
	fs.StringVar(&cfg.Pattern, "pattern", cfg.Pattern, "Comma-separated filename patterns")
	fs.Float64Var(&cfg.TTHMin, "tth-min", cfg.TTHMin, "Lower bound of 2θ range (degrees)")
	fs.Float64Var(&cfg.TTHMax, "tth-max", cfg.TTHMax, "Upper bound of 2θ range (degrees)")
	fs.IntVar(&cfg.NBins, "nbins", cfg.NBins, "Number of 2θ bins")
	fs.StringVar(&cfg.OutputPrefix, "output-prefix", cfg.OutputPrefix, "Prefix for per-file output text files")
	fs.BoolVar(&cfg.Plot, "plot", cfg.Plot, "Also write a PNG plot per pattern")
	fs.BoolVar(&cfg.Watch, "watch", cfg.Watch, "Keep running and integrate new files as they appear")
	fs.DurationVar(&cfg.Settle, "settle", cfg.Settle, "With --watch, wait this long after the last write before reading a file")
	fs.BoolVar(&cfg.ContinueOnError, "continue-on-error", cfg.ContinueOnError, "Keep going after a failed file and report all failures at the end")
}

func AddStreamFlags(fs *pflag.FlagSet, cfg *AppConfig) {
	fs.StringVar(&cfg.Endpoint, "endpoint", cfg.Endpoint, "Detector stream endpoint (ZMQ PULL)")
	fs.StringVarP(&cfg.OutputDir, "output-folder", "o", cfg.OutputDir, "Output folder for TIFF images")
	fs.VarP(&optionalInt{p: &cfg.Limit}, "nframes", "n", "Stop after N images (default until end of series)")
	fs.StringVar(&cfg.RawLogDir, "raw-log", cfg.RawLogDir, "Also record raw stream messages into this folder")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Use the built-in simulator instead of a detector")
	fs.Float64Var(&cfg.DebugAcqRate, "debug-rate", cfg.DebugAcqRate, "Simulator frame rate (Hz)")
	fs.IntVar(&cfg.IngestLogEvery, "ingest-log-every", cfg.IngestLogEvery, "Log one in N ingest problems")
	fs.BoolVar(&cfg.ContinueOnError, "continue-on-error", cfg.ContinueOnError, "Keep going after a failed image and report all failures at the end")
	fs.StringVar(&cfg.DetectorAPI, "detector-api", cfg.DetectorAPI, "SIMPLON API base URL, e.g. http://detector; enables status checks")
	fs.DurationVar(&cfg.DetectorPoll, "detector-poll", cfg.DetectorPoll, "Interval between detector status checks")
	fs.BoolVar(&cfg.EnableStream, "enable-stream", cfg.EnableStream, "Switch the detector stream interface on before listening")
}

// optionalInt is an int flag that stays nil until it is set.
type optionalInt struct {
	p **int
}

func (o *optionalInt) Set(s string) error {
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("must not be negative")
	}
	*o.p = &v
	return nil
}

func (o *optionalInt) String() string {
	if o == nil || o.p == nil || *o.p == nil {
		return ""
	}
	return strconv.Itoa(**o.p)
}

func (o *optionalInt) Type() string { return "int" }

// ChangedFlags returns the names of the flags set on the command line.
func ChangedFlags(fs *pflag.FlagSet) map[string]bool {
	changed := map[string]bool{}
	fs.Visit(func(f *pflag.Flag) { changed[f.Name] = true })
	return changed
}

// Resolve layers the config file (path, or the default path when it exists) and
// the environment under the flags already parsed into cfg.
func Resolve(cfg *AppConfig, path string, changed map[string]bool) error {
	cfgFile := path
	if cfgFile == "" {
		cfgFile = DefaultConfigPath()
		if cfgFile != "" && !FileExists(cfgFile) {
			cfgFile = ""
		}
	}
	if cfgFile != "" {
		fc, err := LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := ApplyFileConfig(cfg, fc, changed); err != nil {
			return err
		}
	}
	return ApplyEnvConfig(cfg, changed)
}
