package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/MakeNowJust/heredoc/v2"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/noteshare/internal"
	pkgconfig "github.com/starford/noteshare/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	load := pkgconfig.Load[internal.Config]
	if !cmd.IsSet("config") {
		// The default path may be absent; defaults still need to validate.
		load = pkgconfig.LoadOptional[internal.Config]
	}
	if err := load(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}
}

func clientFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "url",
			Usage:   "Base URL of the API",
			Value:   "http://localhost:8080/api",
			Sources: cli.EnvVars("NOTESHARE_URL"),
		},
		&cli.StringFlag{
			Name:    "token",
			Usage:   "Bearer token",
			Sources: cli.EnvVars("NOTESHARE_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "email",
			Usage:   "Sign in with this email when no token is given",
			Sources: cli.EnvVars("NOTESHARE_EMAIL"),
		},
		&cli.StringFlag{
			Name:    "password",
			Usage:   "Password for --email",
			Sources: cli.EnvVars("NOTESHARE_PASSWORD"),
		},
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "noteshare",
		Usage: "Share lecture notes: upload, browse by subject, search and star",
		Description: heredoc.Doc(`
			Noteshare serves a note-sharing API and ships a terminal client
			for its paginated listings. Listings load ten notes at a time; the
			client asks for the next page when you press Enter.
		`),
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, event stream and inbox watcher",
				Flags:  []cli.Flag{configFlag()},
				Action: serve,
			},
			{
				Name:  "mcp",
				Usage: "Serve note tools over MCP stdio",
				Description: heredoc.Doc(`
					Exposes list_subjects, browse_subject, search_notes and
					read_note. upload_note is added when mcp.owner_email names
					a registered account.
				`),
				Flags:  []cli.Flag{configFlag()},
				Action: serveMCP,
			},
			{
				Name:  "browse",
				Usage: "Page through the notes of a subject",
				Flags: append(clientFlags(), &cli.StringFlag{
					Name:     "subject",
					Aliases:  []string{"s"},
					Usage:    "Subject to browse",
					Required: true,
				}),
				Action: browse,
			},
			{
				Name:  "search",
				Usage: "Page through notes matching a query",
				Flags: append(clientFlags(), &cli.StringFlag{
					Name:     "query",
					Aliases:  []string{"q"},
					Usage:    "Search text",
					Required: true,
				}),
				Action: search,
			},
			{
				Name:   "starred",
				Usage:  "Page through your starred notes",
				Flags:  clientFlags(),
				Action: starred,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
