// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"strings"

	"github.com/spf13/cobra"
)

func RunSearchCommand(configPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search every provider and print unified results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			query := strings.Join(args, " ")
			results, err := a.unifier.Search(cmd.Context(), query, limit)
			if err != nil {
				return err
			}

			for _, anime := range results {
				cmd.Printf("%-40s  %-8s  %-12s  year=%d  episodes=%d  sources=%d\n",
					truncate(anime.Title.Main(), 40),
					anime.Type, anime.Status, anime.Year, anime.EpisodeCount, len(anime.ExternalIDs))
			}
			cmd.Printf("\n%d result(s)\n", len(results))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of results")
	return cmd
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
