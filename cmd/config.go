package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/tanq16/urlget/internal/output"
	"github.com/tanq16/urlget/internal/utils"
)

// initConfig layers, from lowest to highest precedence: the config file,
// URLGET_* environment variables (a local .env file included) and flags.
func initConfig() {
	log := utils.GetLogger("config")

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			output.PrintWarning(fmt.Sprintf("Failed to load .env: %v", err))
		}
	}
	viper.SetEnvPrefix(utils.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(strings.TrimSuffix(utils.ConfigFile, ".yaml"))
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if cfgFile != "" {
			output.PrintWarning(fmt.Sprintf("Config file %s not loaded: %v", cfgFile, err))
		}
		return
	}
	log.Debug().Str("op", "config/read").Str("file", viper.ConfigFileUsed()).Msg("using config file")
}
