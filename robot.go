package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalbot/cardinal/actions"
	"github.com/cardinalbot/cardinal/command"
	"github.com/cardinalbot/cardinal/gate"
	"github.com/cardinalbot/cardinal/metrics"
	"github.com/cardinalbot/cardinal/platform"
	"github.com/cardinalbot/cardinal/prompt"
	"github.com/cardinalbot/cardinal/store"
)

// Robot is the overall configuration for the bot.
type Robot struct {
	// store is the bot's database.
	store *store.Store
	// platform is the chat service. It is nil until a platform is set.
	platform platform.Platform
	// session is the Discord connection backing platform, if any.
	session *discordgo.Session
	// prompts holds commands waiting for replies.
	prompts *prompt.Registry
	// metrics are the bot's observers.
	metrics *metrics.Metrics
	// cmd is the bot state visible to commands.
	cmd *command.Robot
	// prefix is the command prefix.
	prefix string
	// works is the worker pool for running commands.
	works chan chan func(context.Context)
}

// New creates a new robot instance over an opened store.
func New(st *store.Store, poolSize int, promptTimeout time.Duration) *Robot {
	return &Robot{
		store:   st,
		prompts: prompt.New(promptTimeout),
		metrics: metrics.New(),
		works:   make(chan chan func(context.Context), poolSize),
	}
}

// SetPlatform connects the robot to a chat service.
func (robo *Robot) SetPlatform(p platform.Platform, prefix string) {
	log := slog.Default()
	g := gate.New(robo.store, log)
	robo.platform = p
	robo.prefix = prefix
	robo.cmd = &command.Robot{
		Log:      log,
		Platform: p,
		Gate:     g,
		Actions:  actions.New(robo.store, g, p, log, robo.metrics),
		Prompts:  robo.prompts,
		Metrics:  robo.metrics,
		Prefix:   prefix,
	}
}

// Run starts the robot's connections and, if listen is non-empty, the
// metrics server. It returns once all have closed.
func (robo *Robot) Run(ctx context.Context, listen string) error {
	if robo.session == nil {
		return errors.New("no chat platform configured")
	}
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return robo.runDiscord(ctx) })
	if listen != "" {
		group.Go(func() error { return api(ctx, listen, new(http.ServeMux), robo.metrics.Collectors()) })
	}
	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		// If the error is context canceled, then we are shutting down due
		// to a signal, and that is not an error.
		err = nil
	}
	return err
}

// enqueue runs work in the worker pool.
func (robo *Robot) enqueue(ctx context.Context, work func(context.Context)) {
	var w chan func(context.Context)
	select {
	case w = <-robo.works:
	default:
		w = make(chan func(context.Context), 1)
		go worker(ctx, robo.works, w)
	}
	select {
	case <-ctx.Done():
		return
	case w <- work:
	}
}

// worker runs works for a while. The provided context is passed to each work.
func worker(ctx context.Context, works chan chan func(context.Context), ch chan func(context.Context)) {
	for {
		select {
		case <-ctx.Done():
			return
		case work := <-ch:
			work(ctx)
			// Return to the pool if it has room. Otherwise, we're done.
			select {
			case works <- ch:
			default:
				return
			}
		}
	}
}
