package config

import "time"

// CLIConfig is the configuration for kvmesh-cli.
type CLIConfig struct {
	Addr        string        `json:"addr" yaml:"addr"`
	AdminAddr   string        `json:"admin_addr" yaml:"admin_addr"`
	Output      string        `json:"output" yaml:"output"` // text, raw, json, yaml
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
	HistoryFile string        `json:"history_file,omitempty" yaml:"history_file,omitempty"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Addr:      "127.0.0.1:6378",
		AdminAddr: "127.0.0.1:6380",
		Output:    "text",
		Timeout:   5 * time.Second,
	}
}
