package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/time/rate"
)

// Load loads the bot's TOML configuration.
func Load(ctx context.Context, r io.Reader) (*Config, *toml.MetaData, error) {
	var cfg Config
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("couldn't decode config: %w", err)
	}
	expandcfg(&cfg, os.Getenv)
	return &cfg, &md, nil
}

// Config is the marshaled structure of the bot's configuration.
type Config struct {
	// Discord is the configuration for connecting to Discord.
	Discord DiscordCfg `toml:"discord"`
	// DB is the table of database connection strings.
	DB DBCfg `toml:"db"`
	// HTTP is the configuration for the metrics and profiling server.
	HTTP HTTPCfg `toml:"http"`
	// Prompt is the configuration for commands that wait for a reply.
	Prompt PromptCfg `toml:"prompt"`
}

// DiscordCfg is the configuration for connecting to Discord.
type DiscordCfg struct {
	// Token is the bot token, without the "Bot " prefix.
	Token string `toml:"token"`
	// Prefix is the command prefix. Mentioning the bot works as a prefix
	// regardless.
	Prefix string `toml:"prefix"`
	// Rate is the global rate limit for sending messages.
	Rate Rate `toml:"rate"`
}

// DBCfg is the configuration of databases.
type DBCfg struct {
	// DSN is the sqlite data source name of the bot's database.
	DSN string `toml:"dsn"`
}

// HTTPCfg is the configuration of the HTTP server.
type HTTPCfg struct {
	// Listen is the address to serve on. If empty, there is no server.
	Listen string `toml:"listen"`
}

// PromptCfg is the configuration of prompts.
type PromptCfg struct {
	// Timeout is the time to wait for a reply in seconds.
	Timeout float64 `toml:"timeout"`
}

// Rate is a rate limit configuration.
type Rate struct {
	Every float64 `toml:"every"`
	Num   int     `toml:"num"`
}

// Limiter creates a rate limiter from the configuration.
// A zero configuration means no limit.
func (r Rate) Limiter() *rate.Limiter {
	if r.Every <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(fseconds(r.Every)), max(r.Num, 1))
}

func fseconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func expandcfg(cfg *Config, expand func(s string) string) {
	fields := []*string{
		&cfg.Discord.Token,
		&cfg.Discord.Prefix,
		&cfg.DB.DSN,
		&cfg.HTTP.Listen,
	}
	for _, f := range fields {
		*f = os.Expand(*f, expand)
	}
}
