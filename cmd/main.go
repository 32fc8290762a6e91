package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/GouveiaZx/vendeuonline-sub004/cmd/admintool"
	"github.com/GouveiaZx/vendeuonline-sub004/cmd/providers"
	"github.com/GouveiaZx/vendeuonline-sub004/cmd/serve"
)

var rootCmd = cobra.Command{
	Use:   "vendeuonline",
	Short: "vendeuonline marketplace server",

	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var logConfig zap.Config
		if devMode {
			logConfig = zap.NewDevelopmentConfig()
		} else {
			logConfig = zap.NewProductionConfig()
		}
		log, err := logConfig.Build()
		if err != nil {
			panic("failed to build logger: " + err.Error())
		}
		providers.Log = log
		if configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				log.Fatal("Failed to read config", zap.Error(err))
			}
			log.Info("Read config", zap.String("config.file", configFile))
		}
	},
}

var devMode bool
var configFile string

func init() {
	persistentFlags := rootCmd.PersistentFlags()
	persistentFlags.BoolVar(&devMode, "dev", false, "Dev mode")
	persistentFlags.StringVar(&configFile, "config", "", "Config file")

	rootCmd.AddCommand(&serve.Cmd)
	rootCmd.AddCommand(&admintool.Cmd)
}

func main() {
	viper.SetEnvPrefix("vendeuonline")
	viper.AutomaticEnv()
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
	}
}
