// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML representation of the optional config file. All
// fields are pointers so that absent keys leave the lower-precedence value
// untouched.
type fileConfig struct {
	Discord struct {
		AppID            *string  `yaml:"appId"`
		GuildID          *string  `yaml:"guildId"`
		DefaultThreadURL *string  `yaml:"defaultThreadUrl"`
		RPS              *float64 `yaml:"requestsPerSecond"`
		Burst            *int     `yaml:"burst"`
	} `yaml:"discord"`
	API struct {
		ListenAddr *string `yaml:"listenAddr"`
	} `yaml:"api"`
	Metrics struct {
		Enabled *bool   `yaml:"enabled"`
		Addr    *string `yaml:"addr"`
	} `yaml:"metrics"`
	Analysis struct {
		TopN             *int `yaml:"topN"`
		FetchConcurrency *int `yaml:"fetchConcurrency"`
	} `yaml:"analysis"`
	Cache struct {
		RedisAddr *string        `yaml:"redisAddr"`
		RedisDB   *int           `yaml:"redisDb"`
		TTL       *time.Duration `yaml:"ttl"`
	} `yaml:"cache"`
	DataDir  *string `yaml:"dataDir"`
	LogLevel *string `yaml:"logLevel"`
}

// applyFile overlays values from the YAML file at path onto cfg. A missing
// file is not an error; a malformed file is.
func applyFile(cfg *AppConfig, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}

	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setString(&cfg.AppID, fc.Discord.AppID)
	setString(&cfg.GuildID, fc.Discord.GuildID)
	setString(&cfg.DefaultThreadURL, fc.Discord.DefaultThreadURL)
	if fc.Discord.RPS != nil {
		cfg.DiscordRPS = *fc.Discord.RPS
	}
	if fc.Discord.Burst != nil {
		cfg.DiscordBurst = *fc.Discord.Burst
	}
	setString(&cfg.ListenAddr, fc.API.ListenAddr)
	if fc.Metrics.Enabled != nil {
		cfg.MetricsEnabled = *fc.Metrics.Enabled
	}
	setString(&cfg.MetricsAddr, fc.Metrics.Addr)
	if fc.Analysis.TopN != nil {
		cfg.TopN = *fc.Analysis.TopN
	}
	if fc.Analysis.FetchConcurrency != nil {
		cfg.FetchConcurrency = *fc.Analysis.FetchConcurrency
	}
	setString(&cfg.RedisAddr, fc.Cache.RedisAddr)
	if fc.Cache.RedisDB != nil {
		cfg.RedisDB = *fc.Cache.RedisDB
	}
	if fc.Cache.TTL != nil {
		cfg.CacheTTL = *fc.Cache.TTL
	}
	setString(&cfg.DataDir, fc.DataDir)
	setString(&cfg.LogLevel, fc.LogLevel)

	return nil
}
