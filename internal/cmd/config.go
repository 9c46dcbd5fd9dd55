package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/basecamp/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify basecamp configuration",
	Long: `View or modify basecamp configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  basecamp config set llm.model gpt-4o
  basecamp config set dispatch.max_concurrency 8
  basecamp config set review.duration_threshold_days 5

Valid keys:
  llm.model                        - Default model name
  llm.temperature                  - Sampling temperature (0-2)
  llm.base_url                     - OpenAI-compatible endpoint
  llm.timeout_seconds              - Completion timeout
  llm.requests_per_second          - Completion request pacing (0 = unlimited)
  dispatch.max_concurrency         - Specialists running at once
  dispatch.max_attempts            - Tries for a transient failure
  dispatch.initial_backoff_ms      - First retry delay
  dispatch.max_backoff_ms          - Retry delay cap
  dispatch.call_timeout_seconds    - Per-attempt timeout (0 = none)
  review.enabled                   - Pause runs for human review (true/false)
  review.duration_threshold_days   - Trip length that forces review
  cache.enabled                    - Cache tool results (true/false)
  cache.default_ttl_seconds        - Cache entry lifetime
  cache.max_size                   - Cache capacity
  ratelimit.enabled                - Pace tool calls (true/false)
  ratelimit.lockout_seconds        - Cooldown after an upstream 429
  store.backend                    - json or sqlite
  store.dir                        - Data directory
  store.archive                    - Archive finished plans (true/false)
  server.addr                      - HTTP listen address
  logging.enabled                  - Write the debug log (true/false)
  logging.level                    - debug, info, warn or error`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/basecamp/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

// settableKeys maps each key accepted by `config set` to its value type.
var settableKeys = map[string]string{
	"llm.model":                      "string",
	"llm.temperature":                "float",
	"llm.base_url":                   "string",
	"llm.timeout_seconds":            "int",
	"llm.requests_per_second":        "float",
	"dispatch.max_concurrency":       "int",
	"dispatch.max_attempts":          "int",
	"dispatch.initial_backoff_ms":    "int",
	"dispatch.max_backoff_ms":        "int",
	"dispatch.call_timeout_seconds":  "int",
	"review.enabled":                 "bool",
	"review.duration_threshold_days": "int",
	"cache.enabled":                  "bool",
	"cache.default_ttl_seconds":      "int",
	"cache.max_size":                 "int",
	"ratelimit.enabled":              "bool",
	"ratelimit.lockout_seconds":      "int",
	"store.backend":                  "backend",
	"store.dir":                      "string",
	"store.archive":                  "bool",
	"server.addr":                    "string",
	"logging.enabled":                "bool",
	"logging.level":                  "level",
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	return showConfig(cmd.OutOrStdout())
}

func showConfig(w io.Writer) error {
	fmt.Fprintln(w, "Current configuration:")
	fmt.Fprintln(w)

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(w, "Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(w, "Config file: (none - using defaults)\n")
	}
	fmt.Fprintln(w)

	settings := viper.AllSettings()
	delete(settings, "config")
	delete(settings, "env_file")
	if llm, ok := settings["llm"].(map[string]any); ok {
		if key, _ := llm["api_key"].(string); key != "" {
			llm["api_key"] = "********"
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(settings); err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	return enc.Close()
}

// parseConfigValue validates value for key and converts it to the key's type.
func parseConfigValue(key, value string) (any, error) {
	keyType, ok := settableKeys[key]
	if !ok {
		return nil, fmt.Errorf("unknown configuration key: %s\nRun 'basecamp config set --help' to see valid keys", key)
	}

	switch keyType {
	case "string":
		return value, nil
	case "backend":
		for _, b := range config.ValidBackends() {
			if value == b {
				return value, nil
			}
		}
		return nil, fmt.Errorf("invalid value for %s: %s\nValid options: %s",
			key, value, strings.Join(config.ValidBackends(), ", "))
	case "level":
		for _, l := range config.ValidLogLevels() {
			if strings.ToLower(value) == l {
				return l, nil
			}
		}
		return nil, fmt.Errorf("invalid value for %s: %s\nValid options: %s",
			key, value, strings.Join(config.ValidLogLevels(), ", "))
	case "bool":
		if value != "true" && value != "false" {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		return value == "true", nil
	case "float":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected a number", key)
		}
		if f < 0 {
			return nil, fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		return f, nil
	default:
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", key)
		}
		if intVal < 0 {
			return nil, fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		return intVal, nil
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	typedValue, err := parseConfigValue(key, args[1])
	if err != nil {
		return err
	}

	// Ensure config directory exists
	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	viper.Set(key, typedValue)

	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = config.ConfigFile()
	}
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Set %s = %v\n", key, typedValue)
	fmt.Fprintf(out, "Config saved to %s\n", configFile)
	return nil
}

const defaultConfigContent = `# Basecamp Configuration
# See: https://github.com/Iron-Ham/basecamp

# Language model used by the analyzer, the specialists and the synthesizer.
# The key is read from OPENAI_API_KEY when api_key is empty. Without a key
# basecamp falls back to keyword analysis and assembles plans from the raw
# specialist output.
llm:
  model: gpt-4o-mini
  temperature: 0.7
  # base_url: http://localhost:11434/v1
  timeout_seconds: 60
  requests_per_second: 5
  # agent_models:
  #   synthesizer: gpt-4o

# Specialist scheduling and retry
dispatch:
  max_concurrency: 4
  max_attempts: 3
  initial_backoff_ms: 1000
  backoff_factor: 2.0
  max_backoff_ms: 30000
  call_timeout_seconds: 90

# Human review gate. Runs with errors, or longer than the threshold,
# pause in HUMAN_REVIEW until resumed.
review:
  enabled: true
  duration_threshold_days: 7

# Tool result cache
cache:
  enabled: true
  default_ttl_seconds: 3600
  max_size: 1000
  shards: 16

# Per-endpoint budgets for outbound tool calls
ratelimit:
  enabled: true
  lockout_seconds: 60

# Persisted runs and the plan archive
store:
  # json or sqlite
  backend: json
  # Defaults to ~/.local/share/basecamp
  dir: ""
  archive: true

server:
  addr: 127.0.0.1:8321

logging:
  enabled: true
  level: info
  max_size_mb: 10
  max_backups: 3
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'basecamp config set' to modify values", configFile)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configFile, []byte(defaultConfigContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created config file at %s\n", configFile)
	fmt.Fprintln(out, "Edit this file to customize basecamp's behavior.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	configFile := config.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", configFile)
	}

	// Also show config search paths
	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Fprintf(out, "  2. $HOME/.config/basecamp/config.yaml\n")
	fmt.Fprintf(out, "  3. ./config.yaml (current directory)\n")
	fmt.Fprintln(out, "\nEnvironment variables: BASECAMP_* (e.g., BASECAMP_DISPATCH_MAX_CONCURRENCY)")
	fmt.Fprintf(out, "Data directory: %s\n", config.DataDir())
	return nil
}
