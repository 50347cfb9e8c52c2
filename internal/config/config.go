// Package config resolves runtime settings from the environment and an
// optional .env file. Command-line flags are applied on top by the binary.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings.
type Config struct {
	Environment string
	DBPath      string
	Addr        string
	AdminEmail  string
	LogPath     string

	// BaseURL prefixes the QR references stored on items and boxes.
	BaseURL string

	DefaultDuePeriod     time.Duration
	RentalNoticePeriod   time.Duration
	DashboardRentalLimit int
}

const day = 24 * time.Hour

// Load reads settings. Values from the process environment win over values
// from the .env files; a missing default .env file is not an error.
func Load(files ...string) (*Config, error) {
	fileEnv, err := readFiles(files)
	if err != nil {
		return nil, err
	}

	e := env{file: fileEnv}
	cfg := &Config{
		Environment:          e.get("SOUKO_ENV", "development"),
		DBPath:               e.get("SOUKO_DB", "souko.sqlite3"),
		Addr:                 e.get("SOUKO_ADDR", ":8080"),
		AdminEmail:           e.get("SOUKO_ADMIN_EMAIL", "admin@souko.local"),
		LogPath:              e.get("SOUKO_LOG", ""),
		BaseURL:              strings.TrimRight(e.get("SOUKO_BASE_URL", "http://localhost:8080"), "/"),
		DefaultDuePeriod:     time.Duration(e.getInt("SOUKO_DUE_DAYS", 14)) * day,
		RentalNoticePeriod:   time.Duration(e.getInt("SOUKO_NOTICE_DAYS", 28)) * day,
		DashboardRentalLimit: e.getInt("SOUKO_DASHBOARD_LIMIT", 5),
	}
	if e.err != nil {
		return nil, e.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the settings are usable.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("database path is required")
	}
	if c.Addr == "" {
		return errors.New("listen address is required")
	}
	if c.DefaultDuePeriod <= 0 {
		return errors.New("default due period must be positive")
	}
	if c.RentalNoticePeriod <= 0 {
		return errors.New("rental notice period must be positive")
	}
	if c.DashboardRentalLimit <= 0 {
		return errors.New("dashboard rental limit must be positive")
	}
	return nil
}

func readFiles(files []string) (map[string]string, error) {
	explicit := len(files) > 0
	if !explicit {
		files = []string{".env"}
	}

	merged := map[string]string{}
	for _, f := range files {
		vals, err := godotenv.Read(f)
		if err != nil {
			if !explicit && errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("reading %s: %w", f, err)
		}
		for k, v := range vals {
			if _, ok := merged[k]; !ok {
				merged[k] = v
			}
		}
	}
	return merged, nil
}

type env struct {
	file map[string]string
	err  error
}

func (e *env) get(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if v := e.file[key]; v != "" {
		return v
	}
	return def
}

func (e *env) getInt(key string, def int) int {
	raw := e.get(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		if e.err == nil {
			e.err = fmt.Errorf("%s: invalid integer %q", key, raw)
		}
		return def
	}
	return n
}
