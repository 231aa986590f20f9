// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
		},
	}
}

// loginCommand runs the whole authorization flow in one process.
func loginCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Authorize with Spotify in the browser (PKCE)",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-browser",
				Usage: "Print the authorization URL instead of opening a browser",
			},
		},
		Action: r.Login,
	}
}

func logoutCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "Forget the stored token and any pending authorization",
		Action: r.Logout,
	}
}

func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show the current session and token expiry",
		Flags:  outputFlags(),
		Action: r.Status,
	}
}

// authCommand splits login across two invocations for hosts without a local callback server.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manual authorization steps",
		Commands: []*cli.Command{
			{
				Name:   "url",
				Usage:  "Start an authorization and print the URL to visit",
				Action: r.AuthURL,
			},
			{
				Name:  "exchange",
				Usage: "Exchange the code from the redirect for a token",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "code",
						Usage: "Authorization code from the redirect",
					},
					&cli.StringFlag{
						Name:  "url",
						Usage: "Full redirect URL (validates state as well)",
					},
				},
				Action: r.AuthExchange,
			},
		},
	}
}

func profileCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "profile",
		Aliases: []string{"me"},
		Usage:   "Show the authenticated user's profile",
		Flags:   outputFlags(),
		Action:  r.Profile,
	}
}

func nowCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "now",
		Aliases: []string{"playing"},
		Usage:   "Show the currently playing track",
		Flags:   outputFlags(),
		Action:  r.Now,
	}
}

func nextCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "next",
		Usage:  "Skip to the next track",
		Flags:  outputFlags(),
		Action: r.Next,
	}
}

func prevCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "prev",
		Aliases: []string{"previous"},
		Usage:   "Skip to the previous track",
		Flags:   outputFlags(),
		Action:  r.Previous,
	}
}

func volumeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "volume",
		Aliases:   []string{"vol"},
		Usage:     "Set the active device's volume",
		ArgsUsage: "<0-100>",
		Flags:     outputFlags(),
		Action:    r.Volume,
	}
}

func repeatCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "repeat",
		Usage:     "Set the repeat mode; without an argument cycles off, context, track",
		ArgsUsage: "[off|context|track]",
		Flags:     outputFlags(),
		Action:    r.Repeat,
	}
}

func shuffleCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "shuffle",
		Usage:     "Turn shuffle on or off; without an argument toggles it",
		ArgsUsage: "[on|off]",
		Flags:     outputFlags(),
		Action:    r.Shuffle,
	}
}

// playerCommand returns the interactive remote.
func playerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "player",
		Aliases: []string{"tui", "ui"},
		Usage:   "Launch the interactive player remote",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where log output goes while the remote is running",
				Value: "./tmp/spx-tui.log",
			},
		},
		Action: r.TUI,
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the player remote as a web app",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (defaults to server.host:server.port)",
			},
		},
		Action: r.Serve,
	}
}

// setupCommand handles database setup.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Initialize the session database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Revert the most recent migration instead",
					},
					&cli.BoolFlag{
						Name:  "status",
						Usage: "List applied migrations without changing anything",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration file commands",
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Write an example config to the --config path",
				Action: r.ConfigInit,
			},
			{
				Name:   "check",
				Usage:  "Validate the loaded config",
				Action: r.ConfigCheck,
			},
		},
	}
}
