package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "hub",
	Short: "Run a hub node: per-user message stores, merkle trie sync, and identity ingestion",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(loadConfig())
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	bindFlags(rootCmd.PersistentFlags())
	viper.SetEnvPrefix("hub")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	cobra.OnInitialize(func() { viper.AutomaticEnv() })
}

func newLogger(level string) zerolog.Logger {
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	log := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		log.Fatal().Err(err).Str("loglevel", level).Msg("invalid log level")
	}
	return log.Level(lvl)
}
