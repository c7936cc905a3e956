package actions

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/cardinalbot/cardinal/platform"
	"github.com/cardinalbot/cardinal/store"
)

// AddJoinableRole marks an existing role as joinable.
func (a *Actions) AddJoinableRole(ctx context.Context, roleID string) error {
	ok, err := a.gate.ResolveJoinableRole(ctx, roleID)
	if err != nil {
		return err
	}
	if ok {
		return ErrAlreadyJoinable
	}
	err = a.store.Tx(ctx, func(tx *store.Store) error {
		return tx.InsertJoinable(ctx, roleID)
	})
	switch {
	case err == nil:
		a.log.InfoContext(ctx, "role made joinable", slog.String("role", roleID))
		return nil
	case errors.Is(err, store.ErrExists):
		return ErrAlreadyJoinable
	default:
		return fmt.Errorf("couldn't add joinable role: %w", err)
	}
}

// RemoveJoinableRole unmarks a joinable role. The role itself is untouched.
func (a *Actions) RemoveJoinableRole(ctx context.Context, roleID string) error {
	ok, err := a.gate.ResolveJoinableRole(ctx, roleID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotJoinable
	}
	err = a.store.Tx(ctx, func(tx *store.Store) error {
		return tx.DeleteJoinable(ctx, roleID)
	})
	switch {
	case err == nil:
		a.log.InfoContext(ctx, "role no longer joinable", slog.String("role", roleID))
		return nil
	case errors.Is(err, store.ErrNotFound):
		return ErrNotJoinable
	default:
		return fmt.Errorf("couldn't remove joinable role: %w", err)
	}
}

// CreateJoinableRole creates a new role and marks it joinable.
func (a *Actions) CreateJoinableRole(ctx context.Context, guildID, name string) (*platform.Role, error) {
	role, err := a.platform.CreateRole(ctx, guildID, name, "Joinable role")
	if err != nil {
		return nil, a.failed(ctx, "create_role", err)
	}
	err = a.store.Tx(ctx, func(tx *store.Store) error {
		return tx.InsertJoinable(ctx, role.ID)
	})
	if err != nil {
		return role, fmt.Errorf("couldn't record joinable role: %w", err)
	}
	a.log.InfoContext(ctx, "joinable role created", slog.String("role", role.ID), slog.String("guild", guildID))
	return role, nil
}

// DeleteJoinableRole deletes a role. Its joinable row is removed first,
// whether or not the platform deletion succeeds. The role need not be
// joinable.
func (a *Actions) DeleteJoinableRole(ctx context.Context, guildID, roleID string) error {
	err := a.store.Tx(ctx, func(tx *store.Store) error {
		return tx.DeleteJoinable(ctx, roleID)
	})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("couldn't remove joinable role: %w", err)
	}
	if err := a.platform.DeleteRole(ctx, guildID, roleID, "Role deleted"); err != nil {
		return a.failed(ctx, "delete_role", err)
	}
	a.log.InfoContext(ctx, "role deleted", slog.String("role", roleID), slog.String("guild", guildID))
	return nil
}

// JoinRole gives a user a joinable role.
func (a *Actions) JoinRole(ctx context.Context, guildID, userID, roleID string) error {
	if err := a.joinable(ctx, roleID); err != nil {
		return err
	}
	if err := a.platform.AddMemberRole(ctx, guildID, userID, roleID, "Joined role"); err != nil {
		return a.failed(ctx, "add_member_role", err)
	}
	return nil
}

// LeaveRole takes a joinable role from a user.
func (a *Actions) LeaveRole(ctx context.Context, guildID, userID, roleID string) error {
	if err := a.joinable(ctx, roleID); err != nil {
		return err
	}
	if err := a.platform.RemoveMemberRole(ctx, guildID, userID, roleID, "Left role"); err != nil {
		return a.failed(ctx, "remove_member_role", err)
	}
	return nil
}

func (a *Actions) joinable(ctx context.Context, roleID string) error {
	ok, err := a.gate.ResolveJoinableRole(ctx, roleID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotJoinable
	}
	return nil
}

// JoinableRoles lists a guild's joinable roles that still exist, lowest
// position first.
func (a *Actions) JoinableRoles(ctx context.Context, guildID string) ([]*platform.Role, error) {
	ids, err := a.store.JoinableRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("couldn't list joinable roles: %w", err)
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	roles, err := a.guildRoles(ctx, guildID, want)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(roles, func(x, y *platform.Role) int { return cmp.Compare(x.Position, y.Position) })
	return roles, nil
}

// JoinableStats counts members holding each joinable role of a guild, lowest
// position first.
func (a *Actions) JoinableStats(ctx context.Context, guildID string) ([]RoleCount, error) {
	roles, err := a.JoinableRoles(ctx, guildID)
	if err != nil {
		return nil, err
	}
	return a.countRoles(ctx, guildID, roles)
}
