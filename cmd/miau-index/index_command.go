// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"github.com/spf13/cobra"
)

func RunIndexCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "index <anime-id>",
		Short: "Run a full torrent indexing pass for a stored anime",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			torrents, err := a.indexer.IndexAnime(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			for _, t := range torrents {
				cmd.Printf("%-60s  seeders=%-5d  quality=%-7s  type=%s\n",
					truncate(t.Title, 60), t.Seeders, t.Metadata.Quality, t.Metadata.ReleaseType)
			}
			cmd.Printf("\nIndexed %d torrent(s)\n", len(torrents))
			return nil
		},
	}
}
