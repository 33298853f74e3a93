// Package gameconfig loads a single game's configuration from YAML (or
// JSON) plus environment overrides, grounded on the teacher's
// pkg/config/loader.go (YAML-then-JSON parseBytes, mapstructure decode)
// and pkg/config/env.go (godotenv .env loading, ${VAR} expansion).
package gameconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// RoleSlotConfig names one of the five fixed agent seats. At most one
// slot across a Config may set Policy true; every other slot names the
// opponent handle (an external LLM client identifier resolved by the
// caller, not by this package).
type RoleSlotConfig struct {
	AgentID  string `yaml:"agent_id" mapstructure:"agent_id"`
	Policy   bool   `yaml:"policy" mapstructure:"policy"`
	Opponent string `yaml:"opponent,omitempty" mapstructure:"opponent"`
}

// Config is the wire-level configuration for one game (spec ch. 6's
// `create(game_id, configuration)` argument).
type Config struct {
	RoleSlots               []RoleSlotConfig `yaml:"role_slots" mapstructure:"role_slots"`
	SecurityTarget          int              `yaml:"security_target" mapstructure:"security_target"`
	SabotageTarget          int              `yaml:"sabotage_target" mapstructure:"sabotage_target"`
	PromotionThreshold      int              `yaml:"promotion_threshold" mapstructure:"promotion_threshold"`
	ImpostorOversampleProb  float64          `yaml:"impostor_oversample_prob" mapstructure:"impostor_oversample_prob"`
	Seed                    *int64           `yaml:"seed,omitempty" mapstructure:"seed"`
	DeckTotalSabotage       int              `yaml:"deck_total_sabotage" mapstructure:"deck_total_sabotage"`
	DeckTotalSecurity       int              `yaml:"deck_total_security" mapstructure:"deck_total_security"`
	LogLevel                string           `yaml:"log_level,omitempty" mapstructure:"log_level"`
}

// Default returns the standard five-player configuration: a 17-card deck
// (11 Sabotage / 6 Security), security target 5, sabotage target 6,
// promotion threshold 3, no oversampling. Mirrors the source game's
// fascist_policies_to_win=6 / liberal_policies_to_win=5 defaults.
func Default() Config {
	return Config{
		SecurityTarget:     5,
		SabotageTarget:     6,
		PromotionThreshold: 3,
		DeckTotalSabotage:  11,
		DeckTotalSecurity:  6,
		LogLevel:           "info",
	}
}

// LoadEnvFiles loads .env.local then .env from the working directory,
// tolerating either being absent.
func LoadEnvFiles() error {
	for _, file := range []string{".env.local", ".env"} {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// Load reads path (YAML, with a JSON fallback since YAML is a JSON
// superset), expands ${VAR}/$VAR environment references, and decodes the
// result onto Default().
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	raw, err := parseBytes(data)
	if err != nil {
		return Config{}, err
	}
	raw = expandEnvVars(raw)

	cfg := Default()
	if err := decodeConfig(raw, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parseBytes(data []byte) (map[string]any, error) {
	var result map[string]any
	if err := yaml.Unmarshal(data, &result); err == nil {
		return result, nil
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parse config as YAML or JSON: %w", err)
	}
	return result, nil
}

func decodeConfig(input map[string]any, output *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("build config decoder: %w", err)
	}
	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars recursively substitutes ${VAR}/$VAR references found in
// string leaves of a decoded YAML/JSON document.
func expandEnvVars(input map[string]any) map[string]any {
	result := make(map[string]any, len(input))
	for k, v := range input {
		result[k] = expandValue(v)
	}
	return result
}

func expandValue(v any) any {
	switch val := v.(type) {
	case string:
		return envVarPattern.ReplaceAllStringFunc(val, func(match string) string {
			name := strings.TrimPrefix(strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}"), "$")
			if value, ok := os.LookupEnv(name); ok {
				return value
			}
			return match
		})
	case map[string]any:
		return expandEnvVars(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = expandValue(item)
		}
		return out
	default:
		return v
	}
}
