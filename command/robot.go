package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/cardinalbot/cardinal/actions"
	"github.com/cardinalbot/cardinal/gate"
	"github.com/cardinalbot/cardinal/metrics"
	"github.com/cardinalbot/cardinal/platform"
	"github.com/cardinalbot/cardinal/prompt"
)

// Robot is the bot state as is visible to commands.
type Robot struct {
	Log      *slog.Logger
	Platform platform.Platform
	Gate     *gate.Gate
	Actions  *actions.Actions
	Prompts  *prompt.Registry
	Metrics  *metrics.Metrics
	// Prefix is the command prefix shown in usage messages.
	Prefix string
}

// Result classifies the outcome of a command for metrics.
type Result string

const (
	// OK means the command did what was asked.
	OK Result = "ok"
	// Refused means the command was refused with an explanation, such as a
	// missing permission or a channel that isn't opt-in.
	Refused Result = "refused"
	// Failed means something unexpected went wrong.
	Failed Result = "error"
)

// Run runs a command and records its metrics.
func (robo *Robot) Run(ctx context.Context, fn Func, call *Invocation) {
	start := time.Now()
	fn(ctx, robo, call)
	robo.Metrics.CommandLatency.Observe(time.Since(start).Seconds(), call.Name)
}

// reply sends the reply to a command.
func (robo *Robot) reply(ctx context.Context, call *Invocation, res Result, text string) {
	robo.Metrics.CommandCount.Observe(1, call.Name, string(res))
	if err := robo.Platform.Send(ctx, call.ChannelID, text); err != nil {
		robo.Log.ErrorContext(ctx, "couldn't send reply",
			slog.Any("err", err),
			slog.String("trace", call.Trace),
			slog.String("channel", call.ChannelID),
		)
	}
}

// replyEmbed sends an embed as the reply to a command.
func (robo *Robot) replyEmbed(ctx context.Context, call *Invocation, e *platform.Embed) {
	robo.Metrics.CommandCount.Observe(1, call.Name, string(OK))
	if err := robo.Platform.SendEmbed(ctx, call.ChannelID, e); err != nil {
		robo.Log.ErrorContext(ctx, "couldn't send reply",
			slog.Any("err", err),
			slog.String("trace", call.Trace),
			slog.String("channel", call.ChannelID),
		)
	}
}

// fail logs an unexpected error and tells the user something went wrong.
func (robo *Robot) fail(ctx context.Context, call *Invocation, err error, what string) {
	robo.failWith(ctx, call, err, what, "Something went wrong. Please try again later.")
}

// failWith is like fail with a specific reply.
func (robo *Robot) failWith(ctx context.Context, call *Invocation, err error, what, text string) {
	robo.Log.ErrorContext(ctx, what,
		slog.Any("err", err),
		slog.String("trace", call.Trace),
		slog.String("command", call.Name),
		slog.String("guild", call.GuildID),
		slog.String("channel", call.ChannelID),
	)
	robo.reply(ctx, call, Failed, text)
}
