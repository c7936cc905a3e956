package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/cardinalbot/cardinal/prompt"
	"github.com/cardinalbot/cardinal/store"
)

var app = cli.Command{
	Name:  "cardinal",
	Usage: "Discord moderation and opt-in channel bot",

	Flags: []cli.Flag{
		&flagConfig,
		&flagLog,
		&flagLogFormat,
	},
	Commands: []*cli.Command{
		{
			Name:   "init",
			Usage:  "Create or update the database schema",
			Action: cliInit,
		},
		{
			Name:  "whitelist",
			Usage: "Manage the channels where commands may be used",
			Commands: []*cli.Command{
				{
					Name:      "add",
					Usage:     "Whitelist channels",
					ArgsUsage: "<channel id>...",
					Action:    cliWhitelist(whitelistAdd),
				},
				{
					Name:      "remove",
					Aliases:   []string{"rm"},
					Usage:     "Remove channels from the whitelist",
					ArgsUsage: "<channel id>...",
					Action:    cliWhitelist(whitelistRemove),
				},
				{
					Name:   "list",
					Usage:  "List whitelisted channels",
					Action: cliWhitelistList,
				},
			},
		},
	},
	Action: cliRun,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	go func() {
		<-ctx.Done()
		stop()
	}()
	err := app.Run(ctx, os.Args)
	if err != nil {
		fmt.Println(err)
	}
}

func cliRun(ctx context.Context, cmd *cli.Command) error {
	slog.SetDefault(loggerFromFlags(cmd))
	cfg, err := loadConfig(ctx, cmd)
	if err != nil {
		return err
	}
	st, err := openStore(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer st.Close()
	timeout := prompt.DefaultTimeout
	if cfg.Prompt.Timeout > 0 {
		timeout = fseconds(cfg.Prompt.Timeout)
	}
	robo := New(st, runtime.GOMAXPROCS(0), timeout)
	if err := robo.InitDiscord(ctx, cfg.Discord); err != nil {
		return err
	}
	return robo.Run(ctx, cfg.HTTP.Listen)
}

func cliInit(ctx context.Context, cmd *cli.Command) error {
	slog.SetDefault(loggerFromFlags(cmd))
	cfg, err := loadConfig(ctx, cmd)
	if err != nil {
		return err
	}
	st, err := openStore(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer st.Close()
	slog.InfoContext(ctx, "schema up to date", slog.String("dsn", cfg.DB.DSN))
	return nil
}

func cliWhitelist(f func(ctx context.Context, st *store.Store, channels []string) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		slog.SetDefault(loggerFromFlags(cmd))
		if cmd.Args().Len() == 0 {
			return errors.New("no channels given")
		}
		cfg, err := loadConfig(ctx, cmd)
		if err != nil {
			return err
		}
		st, err := openStore(ctx, cfg.DB)
		if err != nil {
			return err
		}
		defer st.Close()
		return f(ctx, st, cmd.Args().Slice())
	}
}

func whitelistAdd(ctx context.Context, st *store.Store, channels []string) error {
	for _, ch := range channels {
		err := st.Whitelist(ctx, ch)
		switch {
		case err == nil:
			slog.InfoContext(ctx, "whitelisted", slog.String("channel", ch))
		case errors.Is(err, store.ErrExists):
			slog.WarnContext(ctx, "already whitelisted", slog.String("channel", ch))
		default:
			return fmt.Errorf("couldn't whitelist %s: %w", ch, err)
		}
	}
	return nil
}

func whitelistRemove(ctx context.Context, st *store.Store, channels []string) error {
	for _, ch := range channels {
		err := st.Unwhitelist(ctx, ch)
		switch {
		case err == nil:
			slog.InfoContext(ctx, "removed from whitelist", slog.String("channel", ch))
		case errors.Is(err, store.ErrNotFound):
			slog.WarnContext(ctx, "not whitelisted", slog.String("channel", ch))
		default:
			return fmt.Errorf("couldn't remove %s from whitelist: %w", ch, err)
		}
	}
	return nil
}

func cliWhitelistList(ctx context.Context, cmd *cli.Command) error {
	slog.SetDefault(loggerFromFlags(cmd))
	cfg, err := loadConfig(ctx, cmd)
	if err != nil {
		return err
	}
	st, err := openStore(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer st.Close()
	chans, err := st.WhitelistedChannels(ctx)
	if err != nil {
		return err
	}
	for _, ch := range chans {
		fmt.Println(ch)
	}
	return nil
}

func loadConfig(ctx context.Context, cmd *cli.Command) (*Config, error) {
	r, err := os.Open(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("couldn't open config file: %w", err)
	}
	defer r.Close()
	cfg, _, err := Load(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("couldn't load config: %w", err)
	}
	return cfg, nil
}

// openStore opens the database and brings its schema up to date.
func openStore(ctx context.Context, cfg DBCfg) (*store.Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("no database configured")
	}
	st, err := store.Open(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

var (
	flagConfig = cli.StringFlag{
		Name:       "config",
		Required:   true,
		Usage:      "TOML config file",
		Persistent: true,
		Action: func(ctx context.Context, cmd *cli.Command, s string) error {
			i, err := os.Stat(s)
			if err != nil {
				return err
			}
			if !i.Mode().IsRegular() {
				return errors.New("config must be a regular file")
			}
			return nil
		},
	}

	flagLog = cli.StringFlag{
		Name:       "log",
		Usage:      "Logging level, one of debug, info, warn, error",
		Value:      "info",
		Persistent: true,
		Action: func(ctx context.Context, c *cli.Command, s string) error {
			var l slog.Level
			return l.UnmarshalText([]byte(s))
		},
	}

	flagLogFormat = cli.StringFlag{
		Name:       "log-format",
		Usage:      "Logging format, either text or json",
		Value:      "text",
		Persistent: true,
		Action: func(ctx context.Context, c *cli.Command, s string) error {
			switch strings.ToLower(s) {
			case "text", "json":
				return nil
			default:
				return errors.New("unknown logging format")
			}
		},
	}
)

func loggerFromFlags(cmd *cli.Command) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(cmd.String("log"))); err != nil {
		panic(err)
	}
	var h slog.Handler
	switch strings.ToLower(cmd.String("log-format")) {
	case "text":
		h = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})
	case "json":
		h = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l})
	}
	return slog.New(h)
}
