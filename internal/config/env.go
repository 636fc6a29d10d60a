package config

import "os"

// ApplyEnvConfig applies DIFFRAXIA_* environment variables, skipping options
// whose flag is in changed.
func ApplyEnvConfig(cfg *AppConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("log-level", os.Getenv("DIFFRAXIA_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("progress-addr", os.Getenv("DIFFRAXIA_PROGRESS_ADDR"), &cfg.ProgressAddr)
	s.setString("group", os.Getenv("DIFFRAXIA_GROUP"), &cfg.Group)
	s.setString("output-folder", os.Getenv("DIFFRAXIA_OUTPUT_FOLDER"), &cfg.OutputDir)
	s.setString("instrument", os.Getenv("DIFFRAXIA_INSTRUMENT"), &cfg.Instrument)
	s.setString("tiff-folder", os.Getenv("DIFFRAXIA_TIFF_FOLDER"), &cfg.TiffFolder)
	s.setString("pattern", os.Getenv("DIFFRAXIA_PATTERN"), &cfg.Pattern)
	s.setString("output-prefix", os.Getenv("DIFFRAXIA_OUTPUT_PREFIX"), &cfg.OutputPrefix)
	s.setString("endpoint", os.Getenv("DIFFRAXIA_ENDPOINT"), &cfg.Endpoint)
	s.setString("raw-log", os.Getenv("DIFFRAXIA_RAW_LOG"), &cfg.RawLogDir)
	s.setString("detector-api", os.Getenv("DIFFRAXIA_DETECTOR_API"), &cfg.DetectorAPI)

	if err := s.setOptionalIntFromString("nframes", os.Getenv("DIFFRAXIA_NFRAMES"), &cfg.Limit); err != nil {
		return err
	}
	if err := s.setIntFromString("nbins", os.Getenv("DIFFRAXIA_NBINS"), &cfg.NBins); err != nil {
		return err
	}
	if err := s.setIntFromString("ingest-log-every", os.Getenv("DIFFRAXIA_INGEST_LOG_EVERY"), &cfg.IngestLogEvery); err != nil {
		return err
	}

	if err := s.setFloatFromString("tth-min", os.Getenv("DIFFRAXIA_TTH_MIN"), &cfg.TTHMin); err != nil {
		return err
	}
	if err := s.setFloatFromString("tth-max", os.Getenv("DIFFRAXIA_TTH_MAX"), &cfg.TTHMax); err != nil {
		return err
	}
	if err := s.setFloatFromString("debug-rate", os.Getenv("DIFFRAXIA_DEBUG_RATE"), &cfg.DebugAcqRate); err != nil {
		return err
	}

	if err := s.setDuration("settle", os.Getenv("DIFFRAXIA_SETTLE"), &cfg.Settle); err != nil {
		return err
	}
	if err := s.setDuration("detector-poll", os.Getenv("DIFFRAXIA_DETECTOR_POLL"), &cfg.DetectorPoll); err != nil {
		return err
	}

	if err := s.setBoolFromString("continue-on-error", os.Getenv("DIFFRAXIA_CONTINUE_ON_ERROR"), &cfg.ContinueOnError); err != nil {
		return err
	}
	if err := s.setBoolFromString("plot", os.Getenv("DIFFRAXIA_PLOT"), &cfg.Plot); err != nil {
		return err
	}
	if err := s.setBoolFromString("watch", os.Getenv("DIFFRAXIA_WATCH"), &cfg.Watch); err != nil {
		return err
	}
	if err := s.setBoolFromString("enable-stream", os.Getenv("DIFFRAXIA_ENABLE_STREAM"), &cfg.EnableStream); err != nil {
		return err
	}
	return s.setBoolFromString("debug", os.Getenv("DIFFRAXIA_DEBUG"), &cfg.Debug)
}
