package actions

import (
	"context"
	"log/slog"
)

// Ban prune day limits.
const (
	DefaultPruneDays = 1
	MaxPruneDays     = 7
)

// ClampPruneDays limits the number of days of messages to delete on ban.
func ClampPruneDays(n int) int {
	return min(max(n, 0), MaxPruneDays)
}

// Kick removes a member from a guild.
func (a *Actions) Kick(ctx context.Context, guildID, userID, reason string) error {
	if err := a.platform.Kick(ctx, guildID, userID, reason); err != nil {
		return a.failed(ctx, "kick", err)
	}
	a.log.InfoContext(ctx, "kicked", slog.String("guild", guildID), slog.String("user", userID), slog.String("reason", reason))
	return nil
}

// Ban bans a member from a guild, deleting their messages from the last
// pruneDays days. pruneDays is clamped to [0, MaxPruneDays].
func (a *Actions) Ban(ctx context.Context, guildID, userID, reason string, pruneDays int) error {
	pruneDays = ClampPruneDays(pruneDays)
	if err := a.platform.Ban(ctx, guildID, userID, reason, pruneDays); err != nil {
		return a.failed(ctx, "ban", err)
	}
	a.log.InfoContext(ctx, "banned",
		slog.String("guild", guildID),
		slog.String("user", userID),
		slog.String("reason", reason),
		slog.Int("prune_days", pruneDays),
	)
	return nil
}
