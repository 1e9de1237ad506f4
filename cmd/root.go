package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fbscope/fbscope/internal/config"
	"github.com/fbscope/fbscope/internal/utils"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `	  __ _
	 / _| |__  ___  ___ ___  _ __   ___
	| |_| '_ \/ __|/ __/ _ \| '_ \ / _ \
	|  _| |_) \__ \ (_| (_) | |_) |  __/
	|_| |_.__/|___/\___\___/| .__/ \___|
	                        |_|

`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fbscope",
	Short: "Football statistics extractor for FBref.",
	Long: LOGO + `fbscope turns FBref league tables, player stat pages, fixture lists and match reports into validated records.

Records are saved to SQLite or Postgres and exported as CSV and JSON.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.fbscope.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy used by the browser (Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().String("targets", "", "YAML targets file (default: built-in list)")

	viper.BindPFlag("browser.proxy", rootCmd.PersistentFlags().Lookup("proxy"))
	viper.BindPFlag("targets_file", rootCmd.PersistentFlags().Lookup("targets"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		utils.Log.Warnf("Could not load .env: %v", err)
	}

	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".fbscope")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := filepath.Join(home, ".fbscope.yaml")
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				utils.Log.Debugf("Could not create config file: %v", err)
			}
		} else {
			utils.Log.Warnf("Could not read config file: %v", err)
		}
	}
}
