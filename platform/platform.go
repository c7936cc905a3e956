// Package platform describes the chat service the bot moderates.
//
// The bot's own database never owns platform objects. Everything here is a
// fallible remote call, and objects may vanish between any two calls.
package platform

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a platform object does not exist.
var ErrNotFound = errors.New("platform object not found")

// Permission bits used by commands. These match the platform's values.
const (
	PermKickMembers    int64 = 1 << 1
	PermBanMembers     int64 = 1 << 2
	PermAdministrator  int64 = 1 << 3
	PermManageChannels int64 = 1 << 4
	PermViewChannel    int64 = 1 << 10
	PermManageRoles    int64 = 1 << 28
)

// Role is a guild role.
type Role struct {
	ID       string
	Name     string
	Position int
}

// Mention formats a mention of the role.
func (r *Role) Mention() string {
	return "<@&" + r.ID + ">"
}

// Channel is a guild text channel.
type Channel struct {
	ID       string
	GuildID  string
	Name     string
	Position int
}

// Mention formats a mention of the channel.
func (c *Channel) Mention() string {
	return "<#" + c.ID + ">"
}

// Member is a user's membership in a guild.
type Member struct {
	UserID string
	Name   string
	Roles  []string
}

// Mention formats a mention of the member.
func (m *Member) Mention() string {
	return "<@" + m.UserID + ">"
}

// HasRole reports whether the member holds a role.
func (m *Member) HasRole(id string) bool {
	for _, r := range m.Roles {
		if r == id {
			return true
		}
	}
	return false
}

// Embed is a rich message.
type Embed struct {
	Title  string
	Color  int
	Fields []Field
}

// Field is a name/value pair in an embed.
type Field struct {
	Name  string
	Value string
}

// Platform is the set of chat service operations the bot uses.
// The default role of a guild, which every member holds, has the guild's ID.
type Platform interface {
	// Self returns the bot's own user ID.
	Self() string

	Role(ctx context.Context, guildID, roleID string) (*Role, error)
	Roles(ctx context.Context, guildID string) ([]*Role, error)
	Channel(ctx context.Context, channelID string) (*Channel, error)
	Channels(ctx context.Context, guildID string) ([]*Channel, error)
	Member(ctx context.Context, guildID, userID string) (*Member, error)
	Members(ctx context.Context, guildID string) ([]*Member, error)

	CreateRole(ctx context.Context, guildID, name, reason string) (*Role, error)
	DeleteRole(ctx context.Context, guildID, roleID, reason string) error
	// SetRoleAccess sets a role's permission overwrite on a channel to allow
	// or deny viewing it.
	SetRoleAccess(ctx context.Context, channelID, roleID string, allow bool) error
	AddMemberRole(ctx context.Context, guildID, userID, roleID, reason string) error
	RemoveMemberRole(ctx context.Context, guildID, userID, roleID, reason string) error
	Kick(ctx context.Context, guildID, userID, reason string) error
	Ban(ctx context.Context, guildID, userID, reason string, pruneDays int) error

	// Permissions returns a user's effective permissions in a channel.
	Permissions(ctx context.Context, userID, channelID string) (int64, error)

	Send(ctx context.Context, channelID, text string) error
	SendEmbed(ctx context.Context, channelID string, embed *Embed) error
}

// RoleExists reports whether a role still exists. Only a definite absence
// is reported as false; other failures are errors.
func RoleExists(ctx context.Context, p Platform, guildID, roleID string) (bool, error) {
	_, err := p.Role(ctx, guildID, roleID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Has reports whether a permission set includes all of want.
// Administrators have every permission.
func Has(perms, want int64) bool {
	if perms&PermAdministrator != 0 {
		return true
	}
	return perms&want == want
}
