// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func noSyncFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "no-sync",
		Usage: "Record the change without downloading or deleting anything",
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file, initialize the database and the offline directory",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Setup,
	}
}

// trackCommand manages individually saved tracks
func trackCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "track",
		Usage: "Keep individual tracks offline",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Keep tracks offline",
				ArgsUsage: "<id> [id...]",
				Flags:     []cli.Flag{configFlag(), noSyncFlag()},
				Action:    r.AddTracks,
			},
			{
				Name:      "remove",
				Aliases:   []string{"rm"},
				Usage:     "Release tracks added with 'track add'",
				ArgsUsage: "<id> [id...]",
				Flags:     []cli.Flag{configFlag(), noSyncFlag()},
				Action:    r.RemoveTracks,
			},
		},
	}
}

// albumCommand pins and unpins albums
func albumCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "album",
		Usage: "Keep whole albums offline",
		Commands: []*cli.Command{
			{
				Name:  "pin",
				Usage: "Pin an album; its tracks are fetched and downloaded",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					configFlag(),
					noSyncFlag(),
					&cli.StringFlag{Name: "title", Usage: "Album title shown in status"},
					&cli.StringFlag{Name: "artist", Usage: "Album artist shown in status"},
				},
				Action: r.PinAlbum,
			},
			{
				Name:  "unpin",
				Usage: "Unpin an album and release its tracks",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  []cli.Flag{configFlag(), noSyncFlag()},
				Action: r.UnpinAlbum,
			},
		},
	}
}

// playlistCommand pins and unpins playlists
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlist",
		Usage: "Keep playlists offline and follow their changes",
		Commands: []*cli.Command{
			{
				Name:  "pin",
				Usage: "Pin a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					configFlag(),
					noSyncFlag(),
					&cli.StringFlag{Name: "name", Usage: "Playlist name shown in status"},
				},
				Action: r.PinPlaylist,
			},
			{
				Name:  "unpin",
				Usage: "Unpin a playlist and release its tracks",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  []cli.Flag{configFlag(), noSyncFlag()},
				Action: r.UnpinPlaylist,
			},
		},
	}
}

// favoritesCommand toggles offline favorites
func favoritesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "favorites",
		Aliases: []string{"fav"},
		Usage:   "Keep favorited tracks offline",
		Commands: []*cli.Command{
			{
				Name:   "enable",
				Usage:  "Keep favorites offline",
				Flags:  []cli.Flag{configFlag(), noSyncFlag()},
				Action: r.EnableFavorites,
			},
			{
				Name:   "disable",
				Usage:  "Stop keeping favorites offline",
				Flags:  []cli.Flag{configFlag(), noSyncFlag()},
				Action: r.DisableFavorites,
			},
		},
	}
}

func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "sync",
		Usage:  "Download missing tracks and delete released ones",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Sync,
	}
}

func refreshCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "refresh",
		Usage:  "Re-fetch favorites, pinned playlists and pending albums, then sync",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Refresh,
	}
}

func removeAllCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "remove-all",
		Usage: "Forget everything kept offline and delete every downloaded track",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Confirm deletion"},
		},
		Action: r.RemoveAll,
	}
}

func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Compare the desired state with the offline directory",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{Name: "json", Usage: "Output JSON"},
		},
		Action: r.Status,
	}
}

func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recent reconciliation passes",
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{Name: "limit", Usage: "Maximum number of passes to show", Value: 20},
			&cli.StringFlag{Name: "loop", Usage: "Only show passes of one loop (tracks, favorites, playlists, albums)"},
			&cli.StringFlag{Name: "status", Usage: "Only show passes with this outcome"},
		},
		Action: r.History,
	}
}

func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Keep the offline directory converged until interrupted",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{Name: "plain", Usage: "Log progress instead of starting the terminal view"},
			&cli.StringFlag{Name: "listen", Usage: "Serve the control API on this address (overrides offline.listen)"},
		},
		Action: r.Watch,
	}
}
