package actions

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/cardinalbot/cardinal/gate"
	"github.com/cardinalbot/cardinal/platform"
	"github.com/cardinalbot/cardinal/store"
)

// EnableOptin makes a channel opt-in. It creates a role named after the
// channel, hides the channel from the guild's default role, shows it to the
// new role, and records the pair.
//
// If the channel is already opt-in, including when a concurrent call records
// it first, the result is ErrAlreadyOptin. Once the role is created, any
// failure deletes it again on a best-effort basis.
func (a *Actions) EnableOptin(ctx context.Context, ch *platform.Channel) (store.OptinChannel, error) {
	if _, found, err := a.gate.ResolveOptin(ctx, ch.ID); err != nil {
		return store.OptinChannel{}, err
	} else if found {
		return store.OptinChannel{}, ErrAlreadyOptin
	}
	role, err := a.platform.CreateRole(ctx, ch.GuildID, ch.Name, fmt.Sprintf("Opt-in role for #%s", ch.Name))
	if err != nil {
		return store.OptinChannel{}, a.failed(ctx, "create_role", err)
	}
	if err := a.platform.SetRoleAccess(ctx, ch.ID, ch.GuildID, false); err != nil {
		err = a.failed(ctx, "set_access", err)
		a.undoEnable(ctx, ch, role, false)
		return store.OptinChannel{}, err
	}
	if err := a.platform.SetRoleAccess(ctx, ch.ID, role.ID, true); err != nil {
		err = a.failed(ctx, "set_access", err)
		a.undoEnable(ctx, ch, role, true)
		return store.OptinChannel{}, err
	}
	oc := store.OptinChannel{ChannelID: ch.ID, RoleID: role.ID, GuildID: ch.GuildID}
	err = a.store.Tx(ctx, func(tx *store.Store) error {
		return tx.InsertOptin(ctx, oc)
	})
	switch {
	case err == nil:
	case errors.Is(err, store.ErrExists):
		// Another enable won. Its overwrites on the default role stand.
		a.undoEnable(ctx, ch, role, false)
		return store.OptinChannel{}, ErrAlreadyOptin
	default:
		a.undoEnable(ctx, ch, role, true)
		return store.OptinChannel{}, fmt.Errorf("couldn't record opt-in channel: %w", err)
	}
	a.log.InfoContext(ctx, "opt-in enabled",
		slog.String("channel", ch.ID),
		slog.String("role", role.ID),
		slog.String("guild", ch.GuildID),
	)
	return oc, nil
}

// undoEnable deletes a role created by a failed EnableOptin and optionally
// restores the default role's access to the channel.
func (a *Actions) undoEnable(ctx context.Context, ch *platform.Channel, role *platform.Role, restore bool) {
	if restore {
		if err := a.platform.SetRoleAccess(ctx, ch.ID, ch.GuildID, true); err != nil {
			a.failed(ctx, "set_access", err)
		}
	}
	if err := a.platform.DeleteRole(ctx, ch.GuildID, role.ID, "Opt-in for #"+ch.Name+" failed"); err != nil {
		a.failed(ctx, "delete_role", err)
		a.log.WarnContext(ctx, "orphaned opt-in role", slog.String("role", role.ID), slog.String("guild", ch.GuildID))
	}
}

// Disabled describes the outcome of DisableOptin.
type Disabled struct {
	store.OptinChannel
	// RoleMissing is true when the opt-in role was already gone.
	RoleMissing bool
}

// DisableOptin makes an opt-in channel ordinary again. It deletes the role,
// restores the default role's access, and deletes the opt-in row. The row is
// deleted even if the platform calls fail, in which case the returned error
// joins the platform errors and the result is still valid.
func (a *Actions) DisableOptin(ctx context.Context, ch *platform.Channel) (Disabled, error) {
	oc, found, err := a.gate.ResolveOptin(ctx, ch.ID)
	if err != nil {
		return Disabled{}, err
	}
	if !found {
		return Disabled{}, ErrNotOptin
	}
	r := Disabled{OptinChannel: oc}
	var errs []error
	err = a.platform.DeleteRole(ctx, oc.GuildID, oc.RoleID, "Opt-in disabled for #"+ch.Name)
	switch {
	case err == nil:
	case errors.Is(err, platform.ErrNotFound):
		r.RoleMissing = true
	default:
		errs = append(errs, a.failed(ctx, "delete_role", err))
	}
	if err := a.platform.SetRoleAccess(ctx, ch.ID, oc.GuildID, true); err != nil {
		errs = append(errs, a.failed(ctx, "set_access", err))
	}
	err = a.store.Tx(ctx, func(tx *store.Store) error {
		return tx.DeleteOptin(ctx, ch.ID)
	})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return Disabled{}, fmt.Errorf("couldn't delete opt-in channel: %w", err)
	}
	a.log.InfoContext(ctx, "opt-in disabled",
		slog.String("channel", ch.ID),
		slog.String("role", oc.RoleID),
		slog.Bool("role_missing", r.RoleMissing),
	)
	return r, errors.Join(errs...)
}

// JoinOptin gives a user the role for an opt-in channel.
func (a *Actions) JoinOptin(ctx context.Context, userID, channelID string) (store.OptinChannel, error) {
	oc, err := a.optinRole(ctx, channelID)
	if err != nil {
		return oc, err
	}
	if err := a.platform.AddMemberRole(ctx, oc.GuildID, userID, oc.RoleID, "Joined opt-in channel"); err != nil {
		return oc, a.failed(ctx, "add_member_role", err)
	}
	return oc, nil
}

// LeaveOptin takes the role for an opt-in channel from a user.
func (a *Actions) LeaveOptin(ctx context.Context, userID, channelID string) (store.OptinChannel, error) {
	oc, err := a.optinRole(ctx, channelID)
	if err != nil {
		return oc, err
	}
	if err := a.platform.RemoveMemberRole(ctx, oc.GuildID, userID, oc.RoleID, "Left opt-in channel"); err != nil {
		return oc, a.failed(ctx, "remove_member_role", err)
	}
	return oc, nil
}

// optinRole resolves an opt-in channel whose role still exists. If the role
// is gone, the row is healed and the error is ErrRoleMissing.
func (a *Actions) optinRole(ctx context.Context, channelID string) (store.OptinChannel, error) {
	oc, found, err := a.gate.ResolveOptin(ctx, channelID)
	if err != nil {
		return oc, err
	}
	if !found {
		return oc, ErrNotOptin
	}
	act, err := a.gate.ReconcileOptinRole(ctx, oc, a)
	if err != nil {
		return oc, err
	}
	if act == gate.SelfHeal {
		if err := a.gate.Heal(ctx, channelID); err != nil {
			return oc, err
		}
		a.metrics.SelfHealCount.Observe(1)
		return oc, ErrRoleMissing
	}
	return oc, nil
}

// OptinChannels lists a guild's opt-in channels that still exist, highest
// position first.
func (a *Actions) OptinChannels(ctx context.Context, guildID string) ([]*platform.Channel, error) {
	rows, err := a.store.GuildOptins(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("couldn't list opt-in channels: %w", err)
	}
	cs, err := a.platform.Channels(ctx, guildID)
	if err != nil {
		return nil, a.failed(ctx, "channels", err)
	}
	want := make(map[string]bool, len(rows))
	for _, oc := range rows {
		want[oc.ChannelID] = true
	}
	cs = slices.DeleteFunc(cs, func(c *platform.Channel) bool { return !want[c.ID] })
	slices.SortFunc(cs, func(x, y *platform.Channel) int { return cmp.Compare(y.Position, x.Position) })
	return cs, nil
}

// OptinStats counts members holding each opt-in role of a guild that still
// exists, highest position first.
func (a *Actions) OptinStats(ctx context.Context, guildID string) ([]RoleCount, error) {
	rows, err := a.store.GuildOptins(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("couldn't list opt-in channels: %w", err)
	}
	want := make(map[string]bool, len(rows))
	for _, oc := range rows {
		want[oc.RoleID] = true
	}
	roles, err := a.guildRoles(ctx, guildID, want)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(roles, func(x, y *platform.Role) int { return cmp.Compare(y.Position, x.Position) })
	return a.countRoles(ctx, guildID, roles)
}

// guildRoles returns the roles of a guild whose IDs are in want.
func (a *Actions) guildRoles(ctx context.Context, guildID string, want map[string]bool) ([]*platform.Role, error) {
	roles, err := a.platform.Roles(ctx, guildID)
	if err != nil {
		return nil, a.failed(ctx, "roles", err)
	}
	return slices.DeleteFunc(roles, func(r *platform.Role) bool { return !want[r.ID] }), nil
}
