// Package config loads reconstructor settings in the usual override
// order: built-in defaults, then an optional YAML file, then
// environment variables (highest precedence).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`
	Schema struct {
		RType        int `yaml:"rtype"`
		PublisherID  int `yaml:"publisher_id"`
		InstrumentID int `yaml:"instrument_id"`
	} `yaml:"schema"`
	Progress struct {
		EveryNEvents int `yaml:"every_n_events"`
	} `yaml:"progress"`
	Writer struct {
		FlushEveryNRows int `yaml:"flush_every_n_rows"`
	} `yaml:"writer"`
	Metrics struct {
		Addr       string   `yaml:"addr"` // empty disables the metrics/health server
		AllowCIDRs []string `yaml:"allow_cidrs"`
	} `yaml:"metrics"`
	Checkpoint struct {
		DBPath string `yaml:"db_path"` // empty disables the checkpoint store
	} `yaml:"checkpoint"`
	Feed struct {
		WSURL string `yaml:"ws_url"` // empty disables the live-feed path
	} `yaml:"feed"`
}

func defaultConfig() Config {
	var c Config
	c.Logging.Level = "info"
	c.Logging.Pretty = false
	c.Schema.RType = 10
	c.Schema.PublisherID = 2
	c.Schema.InstrumentID = 1108
	c.Progress.EveryNEvents = 50_000
	c.Writer.FlushEveryNRows = 1000
	c.Metrics.Addr = ""
	c.Metrics.AllowCIDRs = []string{"127.0.0.0/8", "::1/128"}
	c.Checkpoint.DBPath = ""
	c.Feed.WSURL = ""
	return c
}

// Load returns the effective configuration: defaults, overlaid by
// MBPRECON_CONFIG's YAML file if set, overlaid by individual
// MBPRECON_* environment variables.
func Load() Config {
	c := defaultConfig()
	if path := os.Getenv("MBPRECON_CONFIG"); path != "" {
		if b, err := os.ReadFile(path); err == nil {
			_ = yaml.Unmarshal(b, &c)
		}
	}
	if v := os.Getenv("MBPRECON_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("MBPRECON_LOG_PRETTY"); v == "1" || v == "true" {
		c.Logging.Pretty = true
	}
	if v := os.Getenv("MBPRECON_PROGRESS_EVERY"); v != "" {
		var n int
		if _, err := fmt.Sscan(v, &n); err == nil && n > 0 {
			c.Progress.EveryNEvents = n
		}
	}
	if v := os.Getenv("MBPRECON_FLUSH_EVERY"); v != "" {
		var n int
		if _, err := fmt.Sscan(v, &n); err == nil && n > 0 {
			c.Writer.FlushEveryNRows = n
		}
	}
	if v := os.Getenv("MBPRECON_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("MBPRECON_METRICS_ALLOW_CIDRS"); v != "" {
		c.Metrics.AllowCIDRs = splitCSV(v)
	}
	if v := os.Getenv("MBPRECON_CHECKPOINT_DB"); v != "" {
		c.Checkpoint.DBPath = v
	}
	if v := os.Getenv("MBPRECON_WS_URL"); v != "" {
		c.Feed.WSURL = v
	}
	return c
}

func splitCSV(s string) []string {
	var out []string
	buf := []rune{}
	for _, r := range s {
		if r == ',' {
			if len(buf) > 0 {
				out = append(out, string(buf))
				buf = buf[:0]
			}
			continue
		}
		buf = append(buf, r)
	}
	if len(buf) > 0 {
		out = append(out, string(buf))
	}
	return out
}
