package command

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"

	"github.com/cardinalbot/cardinal/platform"
)

var (
	channelMention = regexp.MustCompile(`^<#(\d+)>$`)
	roleMention    = regexp.MustCompile(`^<@&(\d+)>$`)
	userMention    = regexp.MustCompile(`^<@!?(\d+)>$`)
	snowflake      = regexp.MustCompile(`^\d{15,21}$`)
)

// sameName compares names caselessly.
func sameName(a, b string) bool {
	// Casers are stateful, so each comparison gets its own.
	return cases.Fold().String(a) == cases.Fold().String(b)
}

// idArg extracts an ID from a mention or a bare ID. mention reports whether
// the argument was a mention, which never falls back to a name.
func idArg(re *regexp.Regexp, arg string) (id string, mention bool) {
	if m := re.FindStringSubmatch(arg); m != nil {
		return m[1], true
	}
	if snowflake.MatchString(arg) {
		return arg, false
	}
	return "", false
}

// findChannel resolves a channel in a guild by mention, ID, or name.
func findChannel(ctx context.Context, p platform.Platform, guildID, arg string) (*platform.Channel, error) {
	arg = strings.TrimSpace(arg)
	id, mention := idArg(channelMention, arg)
	if id != "" {
		c, err := p.Channel(ctx, id)
		switch {
		case err == nil && c.GuildID == guildID:
			return c, nil
		case err != nil && !errors.Is(err, platform.ErrNotFound):
			return nil, err
		case mention:
			return nil, platform.ErrNotFound
		}
	}
	cs, err := p.Channels(ctx, guildID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimPrefix(arg, "#")
	for _, c := range cs {
		if sameName(c.Name, name) {
			return c, nil
		}
	}
	return nil, platform.ErrNotFound
}

// findRole resolves a role in a guild by mention, ID, or name.
func findRole(ctx context.Context, p platform.Platform, guildID, arg string) (*platform.Role, error) {
	arg = strings.TrimSpace(arg)
	rs, err := p.Roles(ctx, guildID)
	if err != nil {
		return nil, err
	}
	id, mention := idArg(roleMention, arg)
	if id != "" {
		for _, r := range rs {
			if r.ID == id {
				return r, nil
			}
		}
		if mention {
			return nil, platform.ErrNotFound
		}
	}
	name := strings.TrimPrefix(arg, "@")
	for _, r := range rs {
		if sameName(r.Name, name) {
			return r, nil
		}
	}
	return nil, platform.ErrNotFound
}

// findMember resolves a guild member by mention, ID, or name.
func findMember(ctx context.Context, p platform.Platform, guildID, arg string) (*platform.Member, error) {
	arg = strings.TrimSpace(arg)
	id, mention := idArg(userMention, arg)
	if id != "" {
		m, err := p.Member(ctx, guildID, id)
		switch {
		case err == nil:
			return m, nil
		case !errors.Is(err, platform.ErrNotFound):
			return nil, err
		case mention:
			return nil, platform.ErrNotFound
		}
	}
	ms, err := p.Members(ctx, guildID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimPrefix(arg, "@")
	for _, m := range ms {
		if sameName(m.Name, name) {
			return m, nil
		}
	}
	return nil, platform.ErrNotFound
}

// channelArg resolves a channel argument, defaulting to the invocation
// channel when it is empty. If the channel can't be resolved, it replies and
// returns nil.
func (robo *Robot) channelArg(ctx context.Context, call *Invocation, arg string) *platform.Channel {
	var c *platform.Channel
	var err error
	if arg == "" {
		c, err = robo.Platform.Channel(ctx, call.ChannelID)
	} else {
		c, err = findChannel(ctx, robo.Platform, call.GuildID, arg)
	}
	return resolved(ctx, robo, call, c, err, "Channel", arg)
}

// roleArg resolves a role argument. If the role can't be resolved, it
// replies and returns nil.
func (robo *Robot) roleArg(ctx context.Context, call *Invocation, arg string) *platform.Role {
	r, err := findRole(ctx, robo.Platform, call.GuildID, arg)
	return resolved(ctx, robo, call, r, err, "Role", arg)
}

// memberArg resolves a member argument. If the member can't be resolved, it
// replies and returns nil.
func (robo *Robot) memberArg(ctx context.Context, call *Invocation, arg string) *platform.Member {
	m, err := findMember(ctx, robo.Platform, call.GuildID, arg)
	return resolved(ctx, robo, call, m, err, "Member", arg)
}

func resolved[T any](ctx context.Context, robo *Robot, call *Invocation, v *T, err error, kind, arg string) *T {
	switch {
	case err == nil:
		return v
	case errors.Is(err, platform.ErrNotFound):
		robo.reply(ctx, call, Refused, fmt.Sprintf("%s %q not found.", kind, arg))
	default:
		robo.fail(ctx, call, err, "couldn't resolve "+strings.ToLower(kind))
	}
	return nil
}
