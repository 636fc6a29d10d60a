package config

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig is the TOML form of AppConfig. Pointers mark values where zero or
// false is a meaningful setting.
type FileConfig struct {
	LogLevel        string `toml:"log_level"`
	ProgressAddr    string `toml:"progress_addr"`
	ContinueOnError *bool  `toml:"continue_on_error"`

	Group     string `toml:"group"`
	OutputDir string `toml:"output_folder"`
	Limit     *int   `toml:"nframes"`

	Instrument   string   `toml:"instrument"`
	TiffFolder   string   `toml:"tiff_folder"`
	Pattern      string   `toml:"pattern"`
	TTHMin       *float64 `toml:"tth_min"`
	TTHMax       *float64 `toml:"tth_max"`
	NBins        int      `toml:"nbins"`
	OutputPrefix string   `toml:"output_prefix"`
	Plot         *bool    `toml:"plot"`
	Watch        *bool    `toml:"watch"`
	Settle       string   `toml:"settle"`

	Endpoint       string   `toml:"endpoint"`
	RawLogDir      string   `toml:"raw_log"`
	Debug          *bool    `toml:"debug"`
	DebugAcqRate   *float64 `toml:"debug_rate"`
	IngestLogEvery int      `toml:"ingest_log_every"`
	DetectorAPI    string   `toml:"detector_api"`
	DetectorPoll   string   `toml:"detector_poll"`
	EnableStream   *bool    `toml:"enable_stream"`
}

func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.diffraxia/config.toml, or "" without a home
// directory.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".diffraxia", "config.toml")
	}
	return ""
}

func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// ApplyFileConfig copies the values set in fc into cfg, skipping options whose
// flag is in changed.
func ApplyFileConfig(cfg *AppConfig, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("progress-addr", fc.ProgressAddr, &cfg.ProgressAddr)
	s.setBool("continue-on-error", fc.ContinueOnError, &cfg.ContinueOnError)

	s.setString("group", fc.Group, &cfg.Group)
	s.setString("output-folder", fc.OutputDir, &cfg.OutputDir)
	if err := s.setOptionalInt("nframes", fc.Limit, &cfg.Limit); err != nil {
		return err
	}

	s.setString("instrument", fc.Instrument, &cfg.Instrument)
	s.setString("tiff-folder", fc.TiffFolder, &cfg.TiffFolder)
	s.setString("pattern", fc.Pattern, &cfg.Pattern)
	s.setFloat("tth-min", fc.TTHMin, &cfg.TTHMin)
	s.setFloat("tth-max", fc.TTHMax, &cfg.TTHMax)
	s.setInt("nbins", fc.NBins, &cfg.NBins)
	s.setString("output-prefix", fc.OutputPrefix, &cfg.OutputPrefix)
	s.setBool("plot", fc.Plot, &cfg.Plot)
	s.setBool("watch", fc.Watch, &cfg.Watch)
	if err := s.setDuration("settle", fc.Settle, &cfg.Settle); err != nil {
		return err
	}

	s.setString("endpoint", fc.Endpoint, &cfg.Endpoint)
	s.setString("raw-log", fc.RawLogDir, &cfg.RawLogDir)
	s.setBool("debug", fc.Debug, &cfg.Debug)
	s.setFloat("debug-rate", fc.DebugAcqRate, &cfg.DebugAcqRate)
	s.setInt("ingest-log-every", fc.IngestLogEvery, &cfg.IngestLogEvery)
	s.setString("detector-api", fc.DetectorAPI, &cfg.DetectorAPI)
	s.setBool("enable-stream", fc.EnableStream, &cfg.EnableStream)
	return s.setDuration("detector-poll", fc.DetectorPoll, &cfg.DetectorPoll)
}
