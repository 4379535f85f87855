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

func flowFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "flow",
		Aliases: []string{"f"},
		Usage:   "Grant flow: client-credentials, code, or pkce",
		Value:   "pkce",
	}
}

// authCommand handles OAuth flows against the Spotify accounts service
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Acquire and inspect Spotify access tokens",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Run an OAuth2 flow and cache the resulting token",
				Flags: []cli.Flag{
					configFlag(),
					flowFlag(),
					&cli.BoolFlag{
						Name:  "show-dialog",
						Usage: "Force the consent dialog even when previously approved",
					},
					&cli.StringFlag{
						Name:  "code",
						Usage: "Pre-supplied authorization code, skips the browser step",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "refresh",
				Usage:  "Force a refresh exchange for the cached token",
				Flags:  []cli.Flag{configFlag(), flowFlag()},
				Action: r.AuthRefresh,
			},
			{
				Name:   "status",
				Usage:  "Classify the cached token for a flow without refreshing it",
				Flags:  []cli.Flag{configFlag(), flowFlag()},
				Action: r.AuthStatus,
			},
			{
				Name:  "token",
				Usage: "Print the access token for a flow, acquiring one if needed",
				Flags: []cli.Flag{
					configFlag(),
					flowFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output the full token record as JSON",
					},
				},
				Action: r.AuthToken,
			},
		},
	}
}

// cacheCommand inspects and prunes the token cache
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect the token cache",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List cached token entries and their state",
				Flags:  []cli.Flag{configFlag()},
				Action: r.CacheList,
			},
			{
				Name:  "clear",
				Usage: "Delete cached token entries",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "key",
						Usage: "Cache key to delete (all entries when omitted)",
					},
				},
				Action: r.CacheClear,
			},
		},
	}
}

// profileCommand fetches the authenticated user's profile
func profileCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Fetch the authenticated user's Spotify profile",
		Flags: []cli.Flag{
			configFlag(),
			flowFlag(),
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.Profile,
	}
}

// playlistsCommand lists the authenticated user's playlists
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlists",
		Usage: "List the authenticated user's playlists",
		Flags: []cli.Flag{
			configFlag(),
			flowFlag(),
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of playlists to return",
				Value: 50,
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.Playlists,
	}
}
