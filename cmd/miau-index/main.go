// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "miau-index",
		Short: "Anime metadata unification and torrent indexing service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file or directory")

	rootCmd.AddCommand(RunServeCommand(&configPath))
	rootCmd.AddCommand(RunSearchCommand(&configPath))
	rootCmd.AddCommand(RunFetchCommand(&configPath))
	rootCmd.AddCommand(RunIndexCommand(&configPath))
	rootCmd.AddCommand(RunVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
