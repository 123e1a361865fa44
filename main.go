package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/agrilens/internal/config"
)

type rootOptions struct {
	configPath string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	serve := newServeCommand(opts)

	root := &cobra.Command{
		Use:           "agrilens",
		Short:         "Crop disease scans and produce quality grading",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath(), "path to the YAML config file")
	root.AddCommand(serve, newSimulateCommand(), newTokenCommand(opts))
	return root
}
