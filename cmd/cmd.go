// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

func formatFlag(value string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, csv, markdown or text",
		Value:   value,
	}
}

func platformFlag(required bool) *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "platform",
		Aliases:  []string{"p"},
		Usage:    "Platform name (spotify, youtubemusic, yandexmusic)",
		Required: required,
	}
}

func credentialFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "email",
			Aliases:  []string{"e"},
			Usage:    "Account email",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "password",
			Usage:   "Account password",
			Sources: cli.EnvVars("ORBITUNE_PASSWORD"),
		},
	}
}

// setupCommand creates the config file and initializes storage.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file and initialize session storage",
		Action: r.Setup,
	}
}

func registerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "register",
		Usage:  "Create an Orbitune account and log in",
		Flags:  credentialFlags(),
		Action: r.Register,
	}
}

func loginCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "login",
		Usage:  "Log in and load your library",
		Flags:  credentialFlags(),
		Action: r.Login,
	}
}

func logoutCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "End the session and clear persisted state",
		Action: r.Logout,
	}
}

func whoamiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the persisted session",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
		},
		Action: r.Whoami,
	}
}

// navigateCommand prints the guard decision for a path.
func navigateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "navigate",
		Usage: "Show where the navigation guard sends a path",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "path"},
		},
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "query",
				Aliases: []string{"q"},
				Usage:   "Query parameter as key=value (repeatable)",
			},
		},
		Action: r.Navigate,
	}
}

// servicesCommand handles connected provider operations
func servicesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "services",
		Aliases: []string{"svc"},
		Usage:   "Connected provider operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List connected providers",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.ServicesList,
			},
			{
				Name:   "disconnect",
				Usage:  "Unlink a provider",
				Flags:  []cli.Flag{platformFlag(true)},
				Action: r.ServicesDisconnect,
			},
			{
				Name:   "sync",
				Usage:  "Ask the backend to re-sync every provider",
				Action: r.ServicesSync,
			},
			{
				Name:  "connect",
				Usage: "Link a provider through its OAuth flow in the browser",
				Flags: []cli.Flag{
					platformFlag(true),
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the OAuth flow to complete",
						Value: 2 * time.Minute,
					},
				},
				Action: r.ServicesConnect,
			},
		},
	}
}

func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlists",
		Usage: "List playlists with their track counts",
		Flags: []cli.Flag{
			platformFlag(false),
			&cli.BoolFlag{Name: "refresh", Usage: "Bypass the cache"},
			formatFlag("text"),
		},
		Action: r.Playlists,
	}
}

func tracksCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tracks",
		Usage: "Show one playlist with its tracks",
		Flags: []cli.Flag{
			platformFlag(true),
			&cli.StringFlag{
				Name:     "id",
				Usage:    "Playlist ID",
				Required: true,
			},
			formatFlag("text"),
		},
		Action: r.Tracks,
	}
}

func favoritesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "favorites",
		Aliases: []string{"fav"},
		Usage:   "Show favorites, loading pages as needed",
		Flags: []cli.Flag{
			platformFlag(false),
			&cli.IntFlag{Name: "offset", Usage: "First favorite to show"},
			&cli.IntFlag{Name: "limit", Usage: "Number of favorites to show (default: page size)"},
			formatFlag("text"),
		},
		Action: r.Favorites,
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the local view server",
		Action: r.Serve,
	}
}

// tuiCommand returns the top-level TUI command for interactive browsing.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive library browser",
		Action:  r.TUI,
	}
}
