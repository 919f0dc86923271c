package localmanager

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const version = "4.0.0"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "localmanager",
	Short: "Manage the local APM integration testing stack",
	Long: `localmanager generates a docker-compose configuration for the local
testing stack (Elastic stack plus instrumented sample applications) and
drives its lifecycle through docker-compose:
1. start - resolve services, render and write docker-compose.yml, bring it up
2. status/stop - report or stop the running services
3. versions/load-dashboards/upload-sourcemap - poke the running stack`,
	Version: version,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.localmanager.yaml)")
	rootCmd.SetVersionTemplate(fmt.Sprintf("localmanager v%s\n", version))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".localmanager")
	}

	viper.SetEnvPrefix("localmanager")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
