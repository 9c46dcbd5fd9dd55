package cmd

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/basecamp/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "basecamp",
	Short: "Multi-specialist outdoor adventure planner",
	Long: `Basecamp turns a free-text adventure request into a day-by-day plan.

An analyzer reads the request, a pool of specialists (geo, weather, trails,
gear, permits and one knowledge agent per Arizona town) gathers the facts,
and a synthesizer assembles the plan. Runs with errors or long durations
pause for human review before they finish.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/basecamp/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded before the environment is read")
	_ = viper.BindPFlag("env_file", rootCmd.PersistentFlags().Lookup("env-file"))
}

func initConfig() {
	// A missing .env is normal; variables already set are never overridden
	if envFile := viper.GetString("env_file"); envFile != "" {
		_ = godotenv.Load(envFile)
	}

	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/basecamp")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("BASECAMP")
	// Replace dots with underscores for nested keys in env vars
	// e.g., BASECAMP_DISPATCH_MAX_CONCURRENCY for dispatch.max_concurrency
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
