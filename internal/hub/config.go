package hub

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// AgentSeed preloads the expert directory at startup.
type AgentSeed struct {
	ID        string `koanf:"id" json:"id"`
	Name      string `koanf:"name" json:"name"`
	Role      string `koanf:"role" json:"role"`
	Specialty string `koanf:"specialty" json:"specialty"`
	Level     int    `koanf:"level" json:"level"`
}

type Config struct {
	Socket struct {
		Path    string `koanf:"path"`
		Enabled bool   `koanf:"enabled"`
	} `koanf:"socket"`
	HTTP struct {
		Enabled bool   `koanf:"enabled"`
		Host    string `koanf:"host"`
		Port    int    `koanf:"port"`
	} `koanf:"http"`
	Logging struct {
		Level  string `koanf:"level"`
		Pretty bool   `koanf:"pretty"`
	} `koanf:"logging"`
	Collab struct {
		MinRounds  int           `koanf:"min_rounds"`
		MaxRounds  int           `koanf:"max_rounds"`
		StaleAfter time.Duration `koanf:"stale_after"`
	} `koanf:"collab"`
	DefaultAgent string      `koanf:"default_agent"`
	Agents       []AgentSeed `koanf:"agents"`
	DataDir      string      `koanf:"data_dir"`
}

func DefaultConfig() Config {
	cfg := Config{}
	cfg.Socket.Path = "/tmp/collab-hub.sock"
	cfg.Socket.Enabled = true
	cfg.HTTP.Enabled = true
	cfg.HTTP.Host = "127.0.0.1"
	cfg.HTTP.Port = 8080
	cfg.Logging.Level = "info"
	cfg.Logging.Pretty = false
	cfg.Collab.MinRounds = 3
	cfg.Collab.MaxRounds = 7
	cfg.Collab.StaleAfter = 2 * time.Hour
	cfg.DefaultAgent = "orchestrator"
	cfg.DataDir = filepath.Join(os.Getenv("HOME"), ".collab-hub")
	return cfg
}

// envPrefix is stripped from environment variables; the remainder maps to
// config keys, e.g. COLLAB_HTTP_PORT -> http.port, COLLAB_DATA_DIR ->
// data_dir, COLLAB_COLLAB_MIN_ROUNDS -> collab.min_rounds.
const envPrefix = "COLLAB_"

var envSections = []string{"socket", "http", "logging", "collab"}

func envKey(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	for _, section := range envSections {
		if strings.HasPrefix(key, section+"_") {
			return section + "." + strings.TrimPrefix(key, section+"_")
		}
	}
	return key
}

// LoadConfig layers defaults, an optional YAML file, and COLLAB_* environment
// variables, in that order.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return cfg, fmt.Errorf("load env config: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
