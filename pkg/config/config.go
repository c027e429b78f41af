package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// EffectiveConfigResult carries the merged configuration plus the resolved
// listen address and db path, and records which source won ("flags", "env"
// or "config") for the startup banner.
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	DBPath string
	Source string
}

// Addr returns the listen address derived from server settings.
func (c *Config) Addr() string {
	host := c.Server.Address
	port := c.Server.Port
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// Load reads and parses a YAML config file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// ParseCommandFlags parses the process flags. setFlags records which flags
// the user actually passed so they can win over env and file values.
func ParseCommandFlags() (addr string, dbPath string, cfgPath string, setFlags map[string]bool) {
	addrFlag := flag.String("addr", ":8080", "listen address")
	dbFlag := flag.String("db", "./flux-data", "path to data directory")
	cfgFlag := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	setFlags = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return *addrFlag, *dbFlag, *cfgFlag, setFlags
}

// ResolveConfigPath picks the config file path: explicit flag wins, then
// FLUX_CONFIG, then a conventional default if it exists.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet && flagPath != "" {
		return flagPath
	}
	if v := os.Getenv("FLUX_CONFIG"); v != "" {
		return v
	}
	if _, err := os.Stat("flux.yaml"); err == nil {
		return "flux.yaml"
	}
	return ""
}

// loadEnvOverrides applies FLUX_* environment variables onto cfg and
// reports whether any were used. The upstream credential also honors the
// bare GROQ_API_KEY name used by the hosted deployments.
func loadEnvOverrides(cfg *Config) bool {
	used := false
	if v := os.Getenv("FLUX_ADDR"); v != "" {
		used = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Server.Port = pi
			}
		} else {
			cfg.Server.Address = v
		}
	}
	if v := os.Getenv("FLUX_DB_PATH"); v != "" {
		used = true
		cfg.Server.DBPath = v
	}
	if v := os.Getenv("FLUX_LOG_LEVEL"); v != "" {
		used = true
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FLUX_GROQ_API_KEY"); v != "" {
		used = true
		cfg.Upstream.APIKey = v
	} else if v := os.Getenv("GROQ_API_KEY"); v != "" {
		used = true
		cfg.Upstream.APIKey = v
	}
	if v := os.Getenv("FLUX_UPSTREAM_BASE_URL"); v != "" {
		used = true
		cfg.Upstream.BaseURL = v
	}
	if v := os.Getenv("FLUX_ARCHIVE_CRON"); v != "" {
		used = true
		cfg.Archive.Cron = v
	}
	return used
}

// LoadEffective merges config file (optional), env overrides and flag
// values into an EffectiveConfigResult. Precedence: flags > env > file.
func LoadEffective(cfgPath, addrFlag, dbFlag string, setFlags map[string]bool) (EffectiveConfigResult, error) {
	cfg := &Config{}
	source := "flags"
	if cfgPath != "" {
		loaded, err := Load(cfgPath)
		if err != nil {
			return EffectiveConfigResult{}, err
		}
		cfg = loaded
		source = "config"
	}
	if loadEnvOverrides(cfg) {
		source = "env"
	}

	addr := cfg.Addr()
	if cfg.Server.Address == "" && cfg.Server.Port == 0 {
		addr = addrFlag
	}
	if setFlags["addr"] {
		addr = addrFlag
		source = "flags"
	}
	dbPath := cfg.Server.DBPath
	if dbPath == "" || setFlags["db"] {
		dbPath = dbFlag
	}
	return EffectiveConfigResult{Config: cfg, Addr: addr, DBPath: dbPath, Source: source}, nil
}
