package main

import (
	"fmt"
	"io"
	"os"

	"github.com/handiism/quicksong/internal/config"
	"github.com/handiism/quicksong/internal/tui"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	var configPath, logFile string

	cmd := &cobra.Command{
		Use:           "quicksong-tui",
		Short:         "Interactive osu! beatmap downloader",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ResolvePath(configPath)
			settings, err := config.Load(path)
			if err != nil {
				return err
			}
			if !config.Exists(path) {
				if err := settings.Save(path); err != nil {
					return err
				}
			}
			if err := settings.Validate(); err != nil {
				return err
			}

			log, closeLog, err := fileLogger(logFile, settings.LogLevel)
			if err != nil {
				return err
			}
			defer closeLog()

			return tui.Run(settings, log)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config-path", "c", "", "Path to configuration file")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Write diagnostic logs to this file")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// fileLogger returns a logger writing to path. The alternate screen owns the
// terminal, so without a path logs are discarded.
func fileLogger(path, level string) (*logrus.Logger, func(), error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	if path == "" {
		log.SetOutput(io.Discard)
		return log, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	log.SetOutput(f)
	return log, func() { f.Close() }, nil
}
