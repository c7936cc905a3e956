// Package actions performs platform mutations paired with the store
// metadata that tracks them.
//
// Platform calls never run inside a store transaction. Where a platform
// mutation and a metadata write form a pair, the metadata is written after the
// platform call it depends on succeeds, or unconditionally when the metadata
// must not outlive the platform object.
package actions

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cardinalbot/cardinal/gate"
	"github.com/cardinalbot/cardinal/metrics"
	"github.com/cardinalbot/cardinal/platform"
	"github.com/cardinalbot/cardinal/store"
)

var (
	// ErrNotOptin means a channel is not an opt-in channel.
	ErrNotOptin = errors.New("channel is not opt-in")
	// ErrAlreadyOptin means a channel is already an opt-in channel.
	ErrAlreadyOptin = errors.New("channel is already opt-in")
	// ErrRoleMissing means the role stored for an opt-in channel no longer
	// exists. The opt-in row has been removed when this is returned.
	ErrRoleMissing = errors.New("opt-in role no longer exists")
	// ErrNotJoinable means a role is not joinable.
	ErrNotJoinable = errors.New("role is not joinable")
	// ErrAlreadyJoinable means a role is already joinable.
	ErrAlreadyJoinable = errors.New("role is already joinable")
)

// Actions performs sync actions for one platform.
type Actions struct {
	store    *store.Store
	gate     *gate.Gate
	platform platform.Platform
	log      *slog.Logger
	metrics  *metrics.Metrics
}

// New creates sync actions. If log is nil, slog.Default is used. If m is nil,
// metrics are recorded to unregistered collectors.
func New(s *store.Store, g *gate.Gate, p platform.Platform, log *slog.Logger, m *metrics.Metrics) *Actions {
	if log == nil {
		log = slog.Default()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Actions{
		store:    s,
		gate:     g,
		platform: p,
		log:      log,
		metrics:  m,
	}
}

// RoleExists reports whether a role exists on the platform.
// It implements gate.RoleChecker.
func (a *Actions) RoleExists(ctx context.Context, guildID, roleID string) (bool, error) {
	ok, err := platform.RoleExists(ctx, a.platform, guildID, roleID)
	if err != nil {
		return false, a.failed(ctx, "role", err)
	}
	return ok, nil
}

// failed records a failed platform call.
func (a *Actions) failed(ctx context.Context, op string, err error) error {
	a.metrics.PlatformErrors.Observe(1, op)
	a.log.ErrorContext(ctx, "platform call failed", slog.String("op", op), slog.Any("err", err))
	return err
}

// RoleCount is a role with the number of members holding it.
type RoleCount struct {
	Role    *platform.Role
	Members int
}

// countRoles counts guild members holding each of the given roles.
func (a *Actions) countRoles(ctx context.Context, guildID string, roles []*platform.Role) ([]RoleCount, error) {
	ms, err := a.platform.Members(ctx, guildID)
	if err != nil {
		return nil, a.failed(ctx, "members", err)
	}
	r := make([]RoleCount, len(roles))
	idx := make(map[string]int, len(roles))
	for i, role := range roles {
		r[i].Role = role
		idx[role.ID] = i
	}
	for _, m := range ms {
		for _, id := range m.Roles {
			if i, ok := idx[id]; ok {
				r[i].Members++
			}
		}
	}
	return r, nil
}
