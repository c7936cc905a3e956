// Package platformtest provides an in-memory platform for tests.
package platformtest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/cardinalbot/cardinal/platform"
)

// Sent is a message sent through a Platform.
type Sent struct {
	Channel string
	Text    string
	Embed   *platform.Embed
}

// Overwrite is a recorded channel permission overwrite.
type Overwrite struct {
	Channel string
	Role    string
	Allow   bool
}

// Ban is a recorded ban.
type Ban struct {
	Guild     string
	User      string
	Reason    string
	PruneDays int
}

// Platform is an in-memory platform.Platform. All fields are guarded by the
// Platform's lock when it is in use; tests may populate them directly before
// sharing it.
type Platform struct {
	mu sync.Mutex

	// SelfID is the bot's user ID.
	SelfID string
	// Guilds maps guild IDs to their roles, channels, and members.
	Guilds map[string]*Guild
	// Perms maps channel ID then user ID to effective permissions.
	// A missing entry means no permissions.
	Perms map[string]map[string]int64
	// Overwrites is the log of permission overwrites set.
	Overwrites []Overwrite
	// Messages is the log of messages sent.
	Messages []Sent
	// Kicked is the list of kicked guild/user pairs as "guild/user".
	Kicked []string
	// Bans is the list of bans.
	Bans []Ban
	// Fail maps operation names to errors the operation returns instead of
	// doing anything. Operation names are the method names.
	Fail map[string]error

	next int
}

// Guild is a guild in a Platform.
type Guild struct {
	Roles    map[string]*platform.Role
	Channels map[string]*platform.Channel
	Members  map[string]*platform.Member
}

var _ platform.Platform = (*Platform)(nil)

// New creates an empty platform with the given bot user ID.
func New(self string) *Platform {
	return &Platform{
		SelfID: self,
		Guilds: make(map[string]*Guild),
		Perms:  make(map[string]map[string]int64),
		Fail:   make(map[string]error),
	}
}

// AddGuild adds a guild with its default role.
func (p *Platform) AddGuild(id string) *Guild {
	p.mu.Lock()
	defer p.mu.Unlock()
	g := &Guild{
		Roles:    map[string]*platform.Role{id: {ID: id, Name: "@everyone"}},
		Channels: make(map[string]*platform.Channel),
		Members:  make(map[string]*platform.Member),
	}
	p.Guilds[id] = g
	return g
}

// AddChannel adds a text channel to a guild.
func (p *Platform) AddChannel(guild, id, name string, pos int) *platform.Channel {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := &platform.Channel{ID: id, GuildID: guild, Name: name, Position: pos}
	p.Guilds[guild].Channels[id] = c
	return c
}

// AddRole adds a role to a guild.
func (p *Platform) AddRole(guild, id, name string, pos int) *platform.Role {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := &platform.Role{ID: id, Name: name, Position: pos}
	p.Guilds[guild].Roles[id] = r
	return r
}

// AddMember adds a member to a guild.
func (p *Platform) AddMember(guild, user, name string, roles ...string) *platform.Member {
	p.mu.Lock()
	defer p.mu.Unlock()
	m := &platform.Member{UserID: user, Name: name, Roles: roles}
	p.Guilds[guild].Members[user] = m
	return m
}

// Grant sets a user's permissions in a channel.
func (p *Platform) Grant(channel, user string, perms int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Perms[channel] == nil {
		p.Perms[channel] = make(map[string]int64)
	}
	p.Perms[channel][user] = perms
}

// RemoveRole deletes a role without going through the bot, as if a
// moderator had deleted it by hand.
func (p *Platform) RemoveRole(guild, id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.Guilds[guild].Roles, id)
}

// HasRole reports whether a guild has a role.
func (p *Platform) HasRole(guild, id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.Guilds[guild].Roles[id]
	return ok
}

// MemberRoles returns a copy of a member's roles.
func (p *Platform) MemberRoles(guild, user string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.Guilds[guild].Members[user].Roles)
}

// Sent returns a copy of the messages sent so far.
func (p *Platform) Sent() []Sent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.Messages)
}

// RoleCount returns the number of roles in a guild, including the default.
func (p *Platform) RoleCount(guild string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Guilds[guild].Roles)
}

func (p *Platform) fail(op string) error {
	return p.Fail[op]
}

func (p *Platform) Self() string {
	return p.SelfID
}

func (p *Platform) guild(id string) (*Guild, error) {
	g := p.Guilds[id]
	if g == nil {
		return nil, fmt.Errorf("guild %s: %w", id, platform.ErrNotFound)
	}
	return g, nil
}

func (p *Platform) Role(ctx context.Context, guildID, roleID string) (*platform.Role, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("Role"); err != nil {
		return nil, err
	}
	g, err := p.guild(guildID)
	if err != nil {
		return nil, err
	}
	r := g.Roles[roleID]
	if r == nil {
		return nil, fmt.Errorf("role %s: %w", roleID, platform.ErrNotFound)
	}
	c := *r
	return &c, nil
}

func (p *Platform) Roles(ctx context.Context, guildID string) ([]*platform.Role, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("Roles"); err != nil {
		return nil, err
	}
	g, err := p.guild(guildID)
	if err != nil {
		return nil, err
	}
	r := make([]*platform.Role, 0, len(g.Roles))
	for _, v := range g.Roles {
		c := *v
		r = append(r, &c)
	}
	return r, nil
}

func (p *Platform) Channel(ctx context.Context, channelID string) (*platform.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("Channel"); err != nil {
		return nil, err
	}
	for _, g := range p.Guilds {
		if c := g.Channels[channelID]; c != nil {
			v := *c
			return &v, nil
		}
	}
	return nil, fmt.Errorf("channel %s: %w", channelID, platform.ErrNotFound)
}

func (p *Platform) Channels(ctx context.Context, guildID string) ([]*platform.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("Channels"); err != nil {
		return nil, err
	}
	g, err := p.guild(guildID)
	if err != nil {
		return nil, err
	}
	r := make([]*platform.Channel, 0, len(g.Channels))
	for _, v := range g.Channels {
		c := *v
		r = append(r, &c)
	}
	return r, nil
}

func (p *Platform) Member(ctx context.Context, guildID, userID string) (*platform.Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("Member"); err != nil {
		return nil, err
	}
	g, err := p.guild(guildID)
	if err != nil {
		return nil, err
	}
	m := g.Members[userID]
	if m == nil {
		return nil, fmt.Errorf("member %s: %w", userID, platform.ErrNotFound)
	}
	c := *m
	c.Roles = slices.Clone(m.Roles)
	return &c, nil
}

func (p *Platform) Members(ctx context.Context, guildID string) ([]*platform.Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("Members"); err != nil {
		return nil, err
	}
	g, err := p.guild(guildID)
	if err != nil {
		return nil, err
	}
	r := make([]*platform.Member, 0, len(g.Members))
	for _, m := range g.Members {
		c := *m
		c.Roles = slices.Clone(m.Roles)
		r = append(r, &c)
	}
	return r, nil
}

func (p *Platform) CreateRole(ctx context.Context, guildID, name, reason string) (*platform.Role, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("CreateRole"); err != nil {
		return nil, err
	}
	g, err := p.guild(guildID)
	if err != nil {
		return nil, err
	}
	p.next++
	r := &platform.Role{ID: fmt.Sprintf("role-%d", p.next), Name: name, Position: 1}
	g.Roles[r.ID] = r
	c := *r
	return &c, nil
}

func (p *Platform) DeleteRole(ctx context.Context, guildID, roleID, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("DeleteRole"); err != nil {
		return err
	}
	g, err := p.guild(guildID)
	if err != nil {
		return err
	}
	if g.Roles[roleID] == nil {
		return fmt.Errorf("role %s: %w", roleID, platform.ErrNotFound)
	}
	delete(g.Roles, roleID)
	for _, m := range g.Members {
		m.Roles = slices.DeleteFunc(m.Roles, func(s string) bool { return s == roleID })
	}
	return nil
}

func (p *Platform) SetRoleAccess(ctx context.Context, channelID, roleID string, allow bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("SetRoleAccess"); err != nil {
		return err
	}
	p.Overwrites = append(p.Overwrites, Overwrite{Channel: channelID, Role: roleID, Allow: allow})
	return nil
}

func (p *Platform) memberRoles(guildID, userID, roleID string) (*platform.Member, error) {
	g, err := p.guild(guildID)
	if err != nil {
		return nil, err
	}
	if g.Roles[roleID] == nil {
		return nil, fmt.Errorf("role %s: %w", roleID, platform.ErrNotFound)
	}
	m := g.Members[userID]
	if m == nil {
		return nil, fmt.Errorf("member %s: %w", userID, platform.ErrNotFound)
	}
	return m, nil
}

func (p *Platform) AddMemberRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("AddMemberRole"); err != nil {
		return err
	}
	m, err := p.memberRoles(guildID, userID, roleID)
	if err != nil {
		return err
	}
	if !slices.Contains(m.Roles, roleID) {
		m.Roles = append(m.Roles, roleID)
	}
	return nil
}

func (p *Platform) RemoveMemberRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("RemoveMemberRole"); err != nil {
		return err
	}
	m, err := p.memberRoles(guildID, userID, roleID)
	if err != nil {
		return err
	}
	m.Roles = slices.DeleteFunc(m.Roles, func(s string) bool { return s == roleID })
	return nil
}

func (p *Platform) Kick(ctx context.Context, guildID, userID, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("Kick"); err != nil {
		return err
	}
	g, err := p.guild(guildID)
	if err != nil {
		return err
	}
	delete(g.Members, userID)
	p.Kicked = append(p.Kicked, guildID+"/"+userID)
	return nil
}

func (p *Platform) Ban(ctx context.Context, guildID, userID, reason string, pruneDays int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("Ban"); err != nil {
		return err
	}
	g, err := p.guild(guildID)
	if err != nil {
		return err
	}
	delete(g.Members, userID)
	p.Bans = append(p.Bans, Ban{Guild: guildID, User: userID, Reason: reason, PruneDays: pruneDays})
	return nil
}

func (p *Platform) Permissions(ctx context.Context, userID, channelID string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("Permissions"); err != nil {
		return 0, err
	}
	return p.Perms[channelID][userID], nil
}

func (p *Platform) Send(ctx context.Context, channelID, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("Send"); err != nil {
		return err
	}
	p.Messages = append(p.Messages, Sent{Channel: channelID, Text: text})
	return nil
}

func (p *Platform) SendEmbed(ctx context.Context, channelID string, embed *platform.Embed) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("SendEmbed"); err != nil {
		return err
	}
	e := *embed
	e.Fields = slices.Clone(embed.Fields)
	p.Messages = append(p.Messages, Sent{Channel: channelID, Embed: &e})
	return nil
}
