// Package gate decides whether commands may run and supplies the stored
// metadata they need.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cardinalbot/cardinal/store"
)

// ErrNotWhitelisted is returned by Check for channels that are not
// whitelisted.
var ErrNotWhitelisted = errors.New("channel is not whitelisted")

// Action is what a caller must do with an opt-in channel after
// reconciling it against the platform.
type Action int

const (
	// Proceed means the stored role exists and the operation may continue.
	Proceed Action = iota
	// SelfHeal means the stored role is gone. The caller must delete the
	// opt-in row with Heal and must not attempt the role mutation.
	SelfHeal
)

func (a Action) String() string {
	switch a {
	case Proceed:
		return "proceed"
	case SelfHeal:
		return "self-heal"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// RoleChecker reports whether a platform role exists.
type RoleChecker interface {
	RoleExists(ctx context.Context, guildID, roleID string) (bool, error)
}

// RoleCheckerFunc adapts a function to a RoleChecker.
type RoleCheckerFunc func(ctx context.Context, guildID, roleID string) (bool, error)

func (f RoleCheckerFunc) RoleExists(ctx context.Context, guildID, roleID string) (bool, error) {
	return f(ctx, guildID, roleID)
}

// Gate answers authorization questions from the store.
type Gate struct {
	store *store.Store
	log   *slog.Logger
}

// New creates a gate over a store.
func New(s *store.Store, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}
	return &Gate{store: s, log: log}
}

// IsWhitelisted reports whether commands may be used in a channel.
func (g *Gate) IsWhitelisted(ctx context.Context, channelID string) (bool, error) {
	ok, err := g.store.Whitelisted(ctx, channelID)
	if err != nil {
		return false, fmt.Errorf("couldn't check whitelist: %w", err)
	}
	return ok, nil
}

// Check returns ErrNotWhitelisted if a channel is not whitelisted.
func (g *Gate) Check(ctx context.Context, channelID string) error {
	ok, err := g.IsWhitelisted(ctx, channelID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotWhitelisted
	}
	return nil
}

// ResolveOptin looks up the opt-in row for a channel. A channel that isn't
// opt-in is reported by found being false with a nil error.
func (g *Gate) ResolveOptin(ctx context.Context, channelID string) (oc store.OptinChannel, found bool, err error) {
	oc, err = g.store.Optin(ctx, channelID)
	switch {
	case err == nil:
		return oc, true, nil
	case errors.Is(err, store.ErrNotFound):
		return store.OptinChannel{}, false, nil
	default:
		return store.OptinChannel{}, false, fmt.Errorf("couldn't resolve opt-in channel: %w", err)
	}
}

// ResolveJoinableRole reports whether a role is joinable.
func (g *Gate) ResolveJoinableRole(ctx context.Context, roleID string) (bool, error) {
	ok, err := g.store.Joinable(ctx, roleID)
	if err != nil {
		return false, fmt.Errorf("couldn't resolve joinable role: %w", err)
	}
	return ok, nil
}

// ReconcileOptinRole checks whether the role stored for an opt-in channel
// still exists on the platform. A failure to check is an error, never a
// SelfHeal.
func (g *Gate) ReconcileOptinRole(ctx context.Context, oc store.OptinChannel, roles RoleChecker) (Action, error) {
	ok, err := roles.RoleExists(ctx, oc.GuildID, oc.RoleID)
	if err != nil {
		return Proceed, fmt.Errorf("couldn't check role %s: %w", oc.RoleID, err)
	}
	if !ok {
		g.log.InfoContext(ctx, "opt-in role is gone",
			slog.String("channel", oc.ChannelID),
			slog.String("role", oc.RoleID),
			slog.String("guild", oc.GuildID),
		)
		return SelfHeal, nil
	}
	return Proceed, nil
}

// Heal deletes the opt-in row for a channel whose role is gone. It is not an
// error if the row was already deleted.
func (g *Gate) Heal(ctx context.Context, channelID string) error {
	err := g.store.Tx(ctx, func(tx *store.Store) error {
		return tx.DeleteOptin(ctx, channelID)
	})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("couldn't delete dangling opt-in channel: %w", err)
	}
	g.log.InfoContext(ctx, "removed dangling opt-in channel", slog.String("channel", channelID))
	return nil
}
