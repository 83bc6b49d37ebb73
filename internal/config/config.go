// Package config holds the leadscout configuration and its YAML loader.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all leadscout configuration.
type Config struct {
	ListenAddr string        `yaml:"listen_addr"`
	DBPath     string        `yaml:"db_path"`
	LogLevel   string        `yaml:"log_level"`
	Browser    BrowserConfig `yaml:"browser"`
	Scoring    ScoringConfig `yaml:"scoring"`
	Scraper    ScraperConfig `yaml:"scraper"`
}

// BrowserConfig controls the Chrome engine.
type BrowserConfig struct {
	Headless          *bool         `yaml:"headless"`
	Stealth           *bool         `yaml:"stealth"`
	PageTimeout       time.Duration `yaml:"page_timeout"`
	NavTimeout        time.Duration `yaml:"nav_timeout"`
	NavRetries        int           `yaml:"nav_retries"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	DelayMin          time.Duration `yaml:"delay_min"`
	DelayMax          time.Duration `yaml:"delay_max"`
}

// ScoringConfig sets the priority thresholds.
type ScoringConfig struct {
	HotThreshold  int `yaml:"hot_threshold"`
	WarmThreshold int `yaml:"warm_threshold"`
}

// ScraperConfig bounds scrape runs.
type ScraperConfig struct {
	MaxThreads int `yaml:"max_threads"`
	MaxPosts   int `yaml:"max_posts"`
}

func (c *Config) defaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8000"
	}
	if c.DBPath == "" {
		c.DBPath = "leadscout.db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Scoring.HotThreshold <= 0 {
		c.Scoring.HotThreshold = 80
	}
	if c.Scoring.WarmThreshold <= 0 {
		c.Scoring.WarmThreshold = 50
	}
	if c.Scraper.MaxThreads <= 0 {
		c.Scraper.MaxThreads = 20
	}
	if c.Scraper.MaxPosts <= 0 {
		c.Scraper.MaxPosts = 50
	}
}

// Headless reports the browser headless setting; unset means true.
func (b BrowserConfig) HeadlessOn() bool {
	return b.Headless == nil || *b.Headless
}

// StealthOn reports the stealth setting; unset means true.
func (b BrowserConfig) StealthOn() bool {
	return b.Stealth == nil || *b.Stealth
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.defaults()
	return cfg
}

// Load reads a YAML config file and applies defaults to unset fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.defaults()
	return cfg, nil
}
