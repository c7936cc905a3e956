package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"
)

// Discord is a Platform backed by a Discord session.
type Discord struct {
	session *discordgo.Session
	// rate limits outgoing chat messages. discordgo handles REST rate limit
	// buckets itself; this is the bot's own politeness limit.
	rate *rate.Limiter
}

var _ Platform = (*Discord)(nil)

// NewDiscord wraps a session. If lim is nil, sending is not limited.
func NewDiscord(session *discordgo.Session, lim *rate.Limiter) *Discord {
	if lim == nil {
		lim = rate.NewLimiter(rate.Inf, 1)
	}
	return &Discord{session: session, rate: lim}
}

// Self returns the bot's user ID, or the empty string before the session is
// ready.
func (d *Discord) Self() string {
	if d.session.State == nil || d.session.State.User == nil {
		return ""
	}
	return d.session.State.User.ID
}

func (d *Discord) Role(ctx context.Context, guildID, roleID string) (*Role, error) {
	if r, err := d.session.State.Role(guildID, roleID); err == nil {
		return fromRole(r), nil
	}
	rs, err := d.session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap(err, "get roles")
	}
	for _, r := range rs {
		if r.ID == roleID {
			return fromRole(r), nil
		}
	}
	return nil, ErrNotFound
}

func (d *Discord) Roles(ctx context.Context, guildID string) ([]*Role, error) {
	rs, err := d.session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap(err, "get roles")
	}
	r := make([]*Role, 0, len(rs))
	for _, v := range rs {
		r = append(r, fromRole(v))
	}
	return r, nil
}

func (d *Discord) Channel(ctx context.Context, channelID string) (*Channel, error) {
	if c, err := d.session.State.Channel(channelID); err == nil {
		return fromChannel(c), nil
	}
	c, err := d.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap(err, "get channel")
	}
	return fromChannel(c), nil
}

func (d *Discord) Channels(ctx context.Context, guildID string) ([]*Channel, error) {
	cs, err := d.session.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap(err, "get channels")
	}
	r := make([]*Channel, 0, len(cs))
	for _, c := range cs {
		if c.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		r = append(r, fromChannel(c))
	}
	return r, nil
}

func (d *Discord) Member(ctx context.Context, guildID, userID string) (*Member, error) {
	if m, err := d.session.State.Member(guildID, userID); err == nil {
		return fromMember(m), nil
	}
	m, err := d.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap(err, "get member")
	}
	return fromMember(m), nil
}

func (d *Discord) Members(ctx context.Context, guildID string) ([]*Member, error) {
	const page = 1000
	var r []*Member
	after := ""
	for {
		ms, err := d.session.GuildMembers(guildID, after, page, discordgo.WithContext(ctx))
		if err != nil {
			return nil, wrap(err, "list members")
		}
		for _, m := range ms {
			r = append(r, fromMember(m))
		}
		if len(ms) < page {
			return r, nil
		}
		after = ms[len(ms)-1].User.ID
	}
}

func (d *Discord) CreateRole(ctx context.Context, guildID, name, reason string) (*Role, error) {
	r, err := d.session.GuildRoleCreate(guildID, &discordgo.RoleParams{Name: name}, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	if err != nil {
		return nil, wrap(err, "create role")
	}
	return fromRole(r), nil
}

func (d *Discord) DeleteRole(ctx context.Context, guildID, roleID, reason string) error {
	err := d.session.GuildRoleDelete(guildID, roleID, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	return wrap(err, "delete role")
}

func (d *Discord) SetRoleAccess(ctx context.Context, channelID, roleID string, allow bool) error {
	var a, n int64
	if allow {
		a = discordgo.PermissionViewChannel
	} else {
		n = discordgo.PermissionViewChannel
	}
	err := d.session.ChannelPermissionSet(channelID, roleID, discordgo.PermissionOverwriteTypeRole, a, n, discordgo.WithContext(ctx))
	return wrap(err, "set channel permissions")
}

func (d *Discord) AddMemberRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	err := d.session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	return wrap(err, "add member role")
}

func (d *Discord) RemoveMemberRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	err := d.session.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	return wrap(err, "remove member role")
}

func (d *Discord) Kick(ctx context.Context, guildID, userID, reason string) error {
	err := d.session.GuildMemberDeleteWithReason(guildID, userID, reason, discordgo.WithContext(ctx))
	return wrap(err, "kick")
}

func (d *Discord) Ban(ctx context.Context, guildID, userID, reason string, pruneDays int) error {
	err := d.session.GuildBanCreateWithReason(guildID, userID, reason, pruneDays, discordgo.WithContext(ctx))
	return wrap(err, "ban")
}

func (d *Discord) Permissions(ctx context.Context, userID, channelID string) (int64, error) {
	p, err := d.session.UserChannelPermissions(userID, channelID, discordgo.WithContext(ctx))
	if err != nil {
		return 0, wrap(err, "get permissions")
	}
	return p, nil
}

func (d *Discord) Send(ctx context.Context, channelID, text string) error {
	if err := d.rate.Wait(ctx); err != nil {
		return err
	}
	_, err := d.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:         text,
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}, discordgo.WithContext(ctx))
	return wrap(err, "send message")
}

func (d *Discord) SendEmbed(ctx context.Context, channelID string, embed *Embed) error {
	if err := d.rate.Wait(ctx); err != nil {
		return err
	}
	e := &discordgo.MessageEmbed{
		Title: embed.Title,
		Color: embed.Color,
	}
	for _, f := range embed.Fields {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: true})
	}
	_, err := d.session.ChannelMessageSendEmbed(channelID, e, discordgo.WithContext(ctx))
	return wrap(err, "send embed")
}

// wrap annotates a REST error, converting 404s to ErrNotFound.
func wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	var rerr *discordgo.RESTError
	if errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("couldn't %s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("couldn't %s: %w", op, err)
}

func fromRole(r *discordgo.Role) *Role {
	return &Role{ID: r.ID, Name: r.Name, Position: r.Position}
}

func fromChannel(c *discordgo.Channel) *Channel {
	return &Channel{ID: c.ID, GuildID: c.GuildID, Name: c.Name, Position: c.Position}
}

func fromMember(m *discordgo.Member) *Member {
	r := &Member{Roles: m.Roles, Name: m.Nick}
	if m.User != nil {
		r.UserID = m.User.ID
		if r.Name == "" {
			r.Name = m.User.Username
		}
	}
	return r
}
