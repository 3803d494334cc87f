// Package cmd implements ofcored's cobra command tree and viper-backed
// configuration.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd is the base command; it runs the controller itself
// (runServe). There is no separate serve subcommand.
var rootCmd = &cobra.Command{
	Use:   "ofcored",
	Short: "OpenFlow 1.3 controller core",
	Long: `ofcored accepts switches speaking OpenFlow 1.3, drives each one
through the HELLO/FEATURES/BARRIER handshake, and republishes its events
(PacketIn, PortStatus, FlowRemoved, ...) to a Nexus for an upstream
application to consume.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

// Execute runs the command tree. It's called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ofcored.yaml in . or /etc/ofcored, if present)")
	rootCmd.PersistentFlags().String("address", "0.0.0.0", "address the listening socket binds to")
	rootCmd.PersistentFlags().Int("port", 6653, "TCP port the listening socket binds to")
	rootCmd.PersistentFlags().String("name", "", "component name for this controller instance (default: auto-generated)")
	rootCmd.PersistentFlags().String("pcap-dir", "", "directory to capture per-connection .pcap files into (disabled if empty)")
	rootCmd.PersistentFlags().String("metrics-addr", ":9090", "address the Prometheus /metrics endpoint listens on")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")

	viper.BindPFlag("address", rootCmd.PersistentFlags().Lookup("address"))
	viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("name", rootCmd.PersistentFlags().Lookup("name"))
	viper.BindPFlag("pcap_dir", rootCmd.PersistentFlags().Lookup("pcap-dir"))
	viper.BindPFlag("metrics_addr", rootCmd.PersistentFlags().Lookup("metrics-addr"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("ofcored")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/ofcored")
	}

	viper.SetEnvPrefix("OFCORED")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "ofcored: config file error: %v\n", err)
		}
	}
}

func parseLogLevel(s string) logrus.Level {
	lvl, err := logrus.ParseLevel(s)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
