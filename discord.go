package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/cardinalbot/cardinal/platform"
)

// InitDiscord creates the Discord session and uses it as the robot's chat
// platform. The session is opened by Run.
func (robo *Robot) InitDiscord(ctx context.Context, cfg DiscordCfg) error {
	if cfg.Token == "" {
		return fmt.Errorf("no Discord token configured")
	}
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return fmt.Errorf("couldn't create Discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMembers |
		discordgo.IntentGuildMessages |
		discordgo.IntentMessageContent
	// Handlers run on the event loop so that messages are seen in order.
	// Commands run in the worker pool.
	session.SyncEvents = true
	robo.session = session
	robo.SetPlatform(platform.NewDiscord(session, cfg.Rate.Limiter()), cfg.Prefix)
	return nil
}

// runDiscord connects to Discord and handles events until ctx is done.
func (robo *Robot) runDiscord(ctx context.Context) error {
	defer robo.session.AddHandler(func(s *discordgo.Session, ev *discordgo.Ready) {
		slog.InfoContext(ctx, "connected to Discord",
			slog.String("user", ev.User.Username),
			slog.Int("guilds", len(ev.Guilds)),
		)
	})()
	defer robo.session.AddHandler(func(s *discordgo.Session, ev *discordgo.MessageCreate) {
		robo.discordMessage(ctx, s, ev)
	})()
	if err := robo.session.Open(); err != nil {
		return fmt.Errorf("couldn't connect to Discord: %w", err)
	}
	<-ctx.Done()
	if err := robo.session.Close(); err != nil {
		slog.ErrorContext(ctx, "couldn't close Discord session", slog.Any("err", err))
	}
	return ctx.Err()
}

// discordMessage converts a Discord message event and handles it.
func (robo *Robot) discordMessage(ctx context.Context, s *discordgo.Session, ev *discordgo.MessageCreate) {
	if ev.Author == nil || ev.Author.Bot {
		return
	}
	if ev.GuildID == "" {
		// Direct messages have no guild, and all commands are guild-only.
		return
	}
	author := &platform.Member{UserID: ev.Author.ID, Name: ev.Author.Username}
	if ev.Member != nil {
		author.Roles = ev.Member.Roles
		if ev.Member.Nick != "" {
			author.Name = ev.Member.Nick
		}
	}
	msg := &message{
		ID:        ev.ID,
		GuildID:   ev.GuildID,
		ChannelID: ev.ChannelID,
		Author:    author,
		Text:      ev.Content,
	}
	if g, err := s.State.Guild(ev.GuildID); err == nil {
		msg.GuildName = g.Name
	}
	robo.onMessage(ctx, msg)
}
