package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/hunterjsb/boardbot/internal/cache"
	"github.com/hunterjsb/boardbot/internal/catalog"
	"github.com/hunterjsb/boardbot/internal/config"
	"github.com/hunterjsb/boardbot/internal/discord"
	"github.com/hunterjsb/boardbot/internal/engine"
	"github.com/hunterjsb/boardbot/internal/mapimage"
	"github.com/hunterjsb/boardbot/internal/store"
	"github.com/hunterjsb/boardbot/internal/web"
)

func main() {
	// Variables already in the environment win over .env
	if err := config.LoadDotenv(".env"); err != nil {
		fmt.Printf("Warning: Error loading .env file: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "boardbot",
		Usage: "Discord bot for a grid board event",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "connect to Discord and serve the HTTP endpoints",
				Action: runBot,
			},
			{
				Name:  "commands",
				Usage: "manage registered slash commands",
				Commands: []*cli.Command{
					{Name: "register", Usage: "register the current command set", Action: registerCommands},
					{Name: "clear", Usage: "remove every registered command", Action: clearCommands},
				},
			},
			{
				Name:  "render",
				Usage: "render the board to a PNG file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "mode", Value: string(engine.MapAll), Usage: "all or team"},
					&cli.StringFlag{Name: "team", Usage: "team to focus on in team mode"},
					&cli.StringFlag{Name: "out", Value: "map.png", Usage: "output file"},
				},
				Action: renderMap,
			},
			{
				Name:  "catalog",
				Usage: "board catalog tools",
				Commands: []*cli.Command{
					{
						Name:  "check",
						Usage: "validate a catalog file",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "file", Usage: "catalog YAML, defaults to CATALOG_PATH or the built-in board"},
						},
						Action: checkCatalog,
					},
				},
			},
			{
				Name:  "export",
				Usage: "write a compressed backup of all teams",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Value: "board-backup.json.zst", Usage: "output file"},
				},
				Action: exportBackup,
			},
			{
				Name:  "import",
				Usage: "replace all teams with a backup",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "in", Required: true, Usage: "backup file written by export"},
				},
				Action: importBackup,
			},
		},
	}
}

// loadConfig reads the environment and configures logging
func loadConfig(bot bool) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}
	validate := cfg.Validate
	if bot {
		validate = cfg.ValidateBot
	}
	if err := validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	cfg.SetupLogging()
	return cfg, nil
}

func discordConfig(cfg *config.Config) *discord.Config {
	return &discord.Config{
		DiscordToken:       cfg.DiscordToken,
		OpenAIToken:        cfg.OpenAIToken,
		GuildID:            cfg.GuildID,
		ReviewChannelID:    cfg.ReviewChannelID,
		HelperRoleID:       cfg.HelperRoleID,
		OwnerID:            cfg.OwnerID,
		MaxTokens:          cfg.MaxTokens,
		Temperature:        cfg.Temperature,
		ResetConfirmWindow: cfg.ResetConfirmWindow,
	}
}

// newRenderer builds the map renderer with its cache. The returned func stops the cache janitor.
func newRenderer(cfg *config.Config, cat *catalog.Catalog) (*mapimage.Renderer, func(), error) {
	maps := cache.New[[]byte](cfg.MapCacheTTL)
	opts := []mapimage.Option{
		mapimage.WithCache(maps),
		mapimage.WithLogger(log.WithField("component", "mapimage")),
	}
	if cfg.BackgroundPath != "" {
		bg, err := mapimage.LoadBackground(cfg.BackgroundPath)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, mapimage.WithBackground(bg))
	}

	r, err := mapimage.New(cat, opts...)
	if err != nil {
		return nil, nil, err
	}
	return r, maps.StartJanitor(0), nil
}

func engineOptions(cfg *config.Config) []engine.Option {
	return []engine.Option{
		engine.WithRetry(engine.RetryPolicy{
			Attempts: cfg.StoreRetries,
			Timeout:  cfg.StoreTimeout,
			MinDelay: engine.DefaultRetryPolicy.MinDelay,
			MaxDelay: engine.DefaultRetryPolicy.MaxDelay,
		}),
		engine.WithLogger(log.WithField("component", "engine")),
	}
}

func runBot(ctx context.Context, _ *cli.Command) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}

	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}

	renderer, stopJanitor, err := newRenderer(cfg, cat)
	if err != nil {
		return err
	}
	defer stopJanitor()

	// The notifier needs the session and the bot needs the engine
	bot, err := discord.NewDiscordBot(discordConfig(cfg), nil)
	if err != nil {
		return err
	}
	opts := append(engineOptions(cfg),
		engine.WithNotifier(discord.NewNotifier(bot.Session)),
		engine.WithRenderer(renderer),
	)
	bot.Engine = engine.New(db, cat, opts...)

	log.WithFields(log.Fields{"board": cat.Name(), "db": cfg.DBPath}).Info("Starting Discord bot...")
	if err := bot.Start(); err != nil {
		return err
	}

	gateway := web.CheckFunc(func(context.Context) error {
		if !bot.Ready() {
			return errors.New("gateway not ready")
		}
		return nil
	})
	server := web.New(cfg.HTTPAddr, bot.Engine, map[string]web.Checker{
		"store":   web.CheckFunc(db.Ping),
		"discord": gateway,
	}, log.WithField("component", "web"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down bot...")
		if err := server.Shutdown(context.Background()); err != nil {
			log.Errorf("Error shutting down HTTP server: %v", err)
		}
		return bot.Stop()
	})

	log.Info("Bot is now running. Press CTRL-C to exit.")
	return g.Wait()
}

// loginBot creates a session that can manage commands without opening the gateway
func loginBot() (*discord.DiscordBot, error) {
	cfg, err := loadConfig(true)
	if err != nil {
		return nil, err
	}
	bot, err := discord.NewDiscordBot(discordConfig(cfg), nil)
	if err != nil {
		return nil, err
	}
	if err := bot.Login(); err != nil {
		return nil, err
	}
	return bot, nil
}

func registerCommands(_ context.Context, _ *cli.Command) error {
	bot, err := loginBot()
	if err != nil {
		return err
	}
	if err := bot.RegisterCommands(); err != nil {
		return err
	}
	fmt.Printf("Registered %d commands\n", len(bot.Commands))
	return nil
}

func clearCommands(_ context.Context, _ *cli.Command) error {
	bot, err := loginBot()
	if err != nil {
		return err
	}
	if err := bot.ClearCommands(); err != nil {
		return err
	}
	fmt.Println("Cleared all commands")
	return nil
}

func renderMap(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}
	renderer, stopJanitor, err := newRenderer(cfg, cat)
	if err != nil {
		return err
	}
	defer stopJanitor()

	eng := engine.New(db, cat, append(engineOptions(cfg), engine.WithRenderer(renderer))...)
	img, err := eng.Render(ctx, engine.MapMode(cmd.String("mode")), cmd.String("team"))
	if err != nil {
		return err
	}

	out := cmd.String("out")
	if err := os.WriteFile(out, img, 0o644); err != nil {
		return fmt.Errorf("error writing %s: %w", out, err)
	}
	fmt.Printf("Wrote %s (%d bytes)\n", out, len(img))
	return nil
}

func checkCatalog(_ context.Context, cmd *cli.Command) error {
	path := cmd.String("file")
	if path == "" {
		path = os.Getenv("CATALOG_PATH")
	}
	cat, err := catalog.Load(path)
	if err != nil {
		return err
	}

	slots := 0
	for _, def := range cat.Tiles() {
		slots += len(def.Slots)
	}
	fmt.Printf("%s: %d tiles, %d events, start %s\n", cat.Name(), len(cat.Tiles()), slots, cat.StartTile())
	return nil
}

func exportBackup(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	out := cmd.String("out")
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", out, err)
	}

	n, err := db.Export(ctx, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	fmt.Printf("Exported %d teams to %s\n", n, out)
	return nil
}

func importBackup(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	in := cmd.String("in")
	f, err := os.Open(in)
	if err != nil {
		return fmt.Errorf("error opening %s: %w", in, err)
	}
	defer f.Close()

	n, err := db.Import(ctx, f)
	if err != nil {
		return err
	}
	log.WithField("teams", n).Warn("Replaced all teams from backup")
	fmt.Printf("Imported %d teams from %s\n", n, in)
	return nil
}
