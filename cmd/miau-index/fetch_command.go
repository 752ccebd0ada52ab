// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kitsuneislife/miau-index/internal/models"
)

func RunFetchCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <source:id> [source:id ...]",
		Short: "Fetch records from providers, merge them and store the result",
		Long: `Fetch one record per named source and unify them into a single
canonical record, e.g.:

  miau-index fetch myanimelist:5114 anilist:6880 kitsu:3936`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]models.ExternalID, 0, len(args))
			for _, arg := range args {
				source, id, ok := strings.Cut(arg, ":")
				if !ok || source == "" || id == "" {
					return fmt.Errorf("invalid reference %q, expected source:id", arg)
				}
				ids = append(ids, models.ExternalID{Source: models.SourceTag(source), ID: id})
			}

			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			anime, err := a.unifier.FetchAndUnify(cmd.Context(), ids)
			if err != nil {
				return err
			}

			cmd.Printf("Stored %s (%s)\n", anime.Title.Main(), anime.ID)
			cmd.Printf("  type=%s status=%s year=%d episodes=%d\n",
				anime.Type, anime.Status, anime.Year, anime.EpisodeCount)
			cmd.Printf("  sources: ")
			for i, ext := range anime.ExternalIDs {
				if i > 0 {
					cmd.Printf(", ")
				}
				cmd.Printf("%s:%s", ext.Source, ext.ID)
			}
			cmd.Printf("\n")
			return nil
		},
	}
}
