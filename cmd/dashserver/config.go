package main

import (
	"errors"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type config struct {
	Listen         string `yaml:"listen"`
	DataDir        string `yaml:"data_dir"`
	SessionLogsDir string `yaml:"session_logs_dir"`
	WorkerBin      string `yaml:"worker_bin"`
	Workdir        string `yaml:"workdir"`
	Debug          bool   `yaml:"debug"`
}

func defaultConfig() config {
	return config{
		Listen:         ":8420",
		DataDir:        "data/jobs",
		SessionLogsDir: "logs/customer",
		WorkerBin:      "agent-worker",
	}
}

// loadConfig reads an optional YAML config file over the defaults. A missing
// file is not an error; flags are layered on top by the caller.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func (c *config) validate() error {
	if c.Listen == "" {
		return errors.New("listen address cannot be empty")
	}

	if c.DataDir == "" {
		return errors.New("data_dir cannot be empty")
	}

	if c.SessionLogsDir == "" {
		return errors.New("session_logs_dir cannot be empty")
	}

	if c.WorkerBin == "" {
		return errors.New("worker_bin cannot be empty")
	}

	return nil
}

// bindFlags registers the server flags. Flags set on the command line
// override values from the config file.
func bindFlags(fs *pflag.FlagSet, cfg *config) {
	fs.StringVar(&cfg.Listen, "listen", cfg.Listen, "HTTP listen address")

	fs.StringVar(
		&cfg.DataDir,
		"data-dir",
		cfg.DataDir,
		"Directory for per-job input files and logs",
	)

	fs.StringVar(
		&cfg.SessionLogsDir,
		"session-logs-dir",
		cfg.SessionLogsDir,
		"Directory containing worker session logs",
	)

	fs.StringVar(
		&cfg.WorkerBin,
		"worker-bin",
		cfg.WorkerBin,
		"Path to the agent worker executable",
	)

	fs.StringVar(
		&cfg.Workdir,
		"workdir",
		cfg.Workdir,
		"Default working directory for jobs",
	)

	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable debug logs")
}

// applyFlagOverrides copies values from flagCfg into cfg for every flag that
// was set explicitly on the command line, so flags win over the config file
// without flag defaults clobbering it.
func applyFlagOverrides(fs *pflag.FlagSet, cfg *config, flagCfg config) {
	if fs.Changed("listen") {
		cfg.Listen = flagCfg.Listen
	}

	if fs.Changed("data-dir") {
		cfg.DataDir = flagCfg.DataDir
	}

	if fs.Changed("session-logs-dir") {
		cfg.SessionLogsDir = flagCfg.SessionLogsDir
	}

	if fs.Changed("worker-bin") {
		cfg.WorkerBin = flagCfg.WorkerBin
	}

	if fs.Changed("workdir") {
		cfg.Workdir = flagCfg.Workdir
	}

	if fs.Changed("debug") {
		cfg.Debug = flagCfg.Debug
	}
}
