package main

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/cardinalbot/cardinal/command"
	"github.com/cardinalbot/cardinal/platform"
)

// message is a guild message as the bot sees it.
type message struct {
	ID        string
	GuildID   string
	GuildName string
	ChannelID string
	Author    *platform.Member
	Text      string
}

// onMessage handles a guild message.
func (robo *Robot) onMessage(ctx context.Context, msg *message) {
	robo.metrics.MessagesCount.Observe(1)
	slog.DebugContext(ctx, "message",
		slog.String("guild", msg.GuildName),
		slog.String("channel", msg.ChannelID),
		slog.String("author", msg.Author.Name),
		slog.String("content", msg.Text),
	)
	// Replies to prompts are consumed here so that they are delivered in
	// order with respect to the messages around them.
	if robo.prompts.Deliver(msg.ChannelID, msg.Author.UserID, msg.Text) {
		return
	}
	text, ok := parseCommand(robo.prefix, robo.platform.Self(), msg.Text)
	if !ok {
		return
	}
	c, args := findCommand(guildCommands, text)
	if c == nil {
		slog.DebugContext(ctx, "no such command", slog.String("text", text))
		return
	}
	call := &command.Invocation{
		Name:      c.name,
		GuildID:   msg.GuildID,
		GuildName: msg.GuildName,
		ChannelID: msg.ChannelID,
		Author:    msg.Author,
		Args:      args,
		Trace:     uuid.NewString(),
	}
	slog.InfoContext(ctx, "command",
		slog.String("trace", call.Trace),
		slog.String("guild", call.GuildID),
		slog.String("channel", call.ChannelID),
		slog.String("author", call.Author.UserID),
		slog.String("command", call.Name),
	)
	robo.enqueue(ctx, func(ctx context.Context) { robo.invoke(ctx, c, call) })
}

// invoke checks a command's requirements and runs it if they are met.
func (robo *Robot) invoke(ctx context.Context, c *guildCommand, call *command.Invocation) {
	if !command.Authorize(ctx, robo.cmd, call, c.req) {
		return
	}
	robo.cmd.Run(ctx, c.fn, call)
}

// parseCommand extracts command text from a message that starts with either
// the prefix or a mention of the bot.
func parseCommand(prefix, self, text string) (string, bool) {
	text = strings.TrimSpace(text)
	if self != "" {
		for _, m := range [...]string{"<@" + self + ">", "<@!" + self + ">"} {
			if rest, ok := strings.CutPrefix(text, m); ok {
				return strings.TrimSpace(rest), true
			}
		}
	}
	if prefix == "" {
		return "", false
	}
	rest, ok := strings.CutPrefix(text, prefix)
	if !ok || rest == "" || rest != strings.TrimLeft(rest, " \t\n") {
		// A bare prefix or one followed by space isn't a command.
		return "", false
	}
	return strings.TrimSpace(rest), true
}

type guildCommand struct {
	parse *regexp.Regexp
	fn    command.Func
	name  string
	req   command.Requirements
}

func findCommand(cmds []guildCommand, text string) (*guildCommand, map[string]string) {
	for i := range cmds {
		c := &cmds[i]
		u := c.parse.FindStringSubmatch(text)
		switch len(u) {
		case 0:
			continue
		case 1:
			return c, nil
		default:
			m := make(map[string]string, len(u)-1)
			s := c.parse.SubexpNames()
			for k, v := range u[1:] {
				m[s[k+1]] = strings.TrimSpace(v)
			}
			return c, m
		}
	}
	return nil, nil
}

var (
	// gated is the requirement of every channel and role command.
	gated = command.Requirements{
		Whitelist: true,
		Bot:       platform.PermManageRoles,
	}
	manageChannels = command.Requirements{
		Whitelist: true,
		Author:    platform.PermManageChannels,
		Bot:       platform.PermManageRoles | platform.PermManageChannels,
	}
	manageRoles = command.Requirements{
		Whitelist: true,
		Author:    platform.PermManageRoles,
		Bot:       platform.PermManageRoles,
	}
)

// guildCommands is the command table. The first match wins, so each usage
// fallback follows the subcommands it covers.
var guildCommands = []guildCommand{
	{
		parse: regexp.MustCompile(`(?i)^channel\s+(?:join|show)\s+(?<channel>.+)$`),
		fn:    command.ChannelJoin,
		name:  "channel-join",
		req:   gated,
	},
	{
		parse: regexp.MustCompile(`(?i)^channel\s+(?:leave|hide)(?:\s+(?<channel>.+))?$`),
		fn:    command.ChannelLeave,
		name:  "channel-leave",
		req:   gated,
	},
	{
		parse: regexp.MustCompile(`(?i)^channel\s+list$`),
		fn:    command.ChannelList,
		name:  "channel-list",
		req:   gated,
	},
	{
		parse: regexp.MustCompile(`(?i)^channel\s+stats$`),
		fn:    command.ChannelStats,
		name:  "channel-stats",
		req:   gated,
	},
	{
		parse: regexp.MustCompile(`(?i)^channel\s+opt-?in\s+enable(?:\s+(?<channel>.+))?$`),
		fn:    command.OptinEnable,
		name:  "optin-enable",
		req:   manageChannels,
	},
	{
		parse: regexp.MustCompile(`(?i)^channel\s+opt-?in\s+disable(?:\s+(?<channel>.+))?$`),
		fn:    command.OptinDisable,
		name:  "optin-disable",
		req:   manageChannels,
	},
	{
		parse: regexp.MustCompile(`(?i)^channel\s+opt-?in(?:\s.*)?$`),
		fn:    command.OptinUsage,
		name:  "optin-usage",
		req:   manageChannels,
	},
	{
		parse: regexp.MustCompile(`(?i)^channel(?:\s.*)?$`),
		fn:    command.ChannelUsage,
		name:  "channel-usage",
		req:   gated,
	},
	{
		parse: regexp.MustCompile(`(?i)^role\s+join\s+(?<role>.+)$`),
		fn:    command.RoleJoin,
		name:  "role-join",
		req:   gated,
	},
	{
		parse: regexp.MustCompile(`(?i)^role\s+leave\s+(?<role>.+)$`),
		fn:    command.RoleLeave,
		name:  "role-leave",
		req:   gated,
	},
	{
		parse: regexp.MustCompile(`(?i)^role\s+list$`),
		fn:    command.RoleList,
		name:  "role-list",
		req:   gated,
	},
	{
		parse: regexp.MustCompile(`(?i)^role\s+stats$`),
		fn:    command.RoleStats,
		name:  "role-stats",
		req:   gated,
	},
	{
		parse: regexp.MustCompile(`(?i)^role\s+add\s+(?<role>.+)$`),
		fn:    command.RoleAdd,
		name:  "role-add",
		req:   manageRoles,
	},
	{
		parse: regexp.MustCompile(`(?i)^role\s+remove\s+(?<role>.+)$`),
		fn:    command.RoleRemove,
		name:  "role-remove",
		req:   manageRoles,
	},
	{
		parse: regexp.MustCompile(`(?i)^role\s+create\s+(?<name>.+)$`),
		fn:    command.RoleCreate,
		name:  "role-create",
		req:   manageRoles,
	},
	{
		parse: regexp.MustCompile(`(?i)^role\s+delete\s+(?<role>.+)$`),
		fn:    command.RoleDelete,
		name:  "role-delete",
		req:   manageRoles,
	},
	{
		parse: regexp.MustCompile(`(?i)^role(?:\s.*)?$`),
		fn:    command.RoleUsage,
		name:  "role-usage",
		req:   gated,
	},
	{
		parse: regexp.MustCompile(`(?i)^kick\s+(?<user>\S+)(?:\s+(?<reason>.+))?$`),
		fn:    command.Kick,
		name:  "kick",
		req: command.Requirements{
			Author: platform.PermKickMembers,
			Bot:    platform.PermKickMembers,
		},
	},
	{
		parse: regexp.MustCompile(`(?i)^ban\s+(?<user>\S+)(?:\s+(?<days>-?\d+))?(?:\s+(?<reason>.+))?$`),
		fn:    command.Ban,
		name:  "ban",
		req: command.Requirements{
			Author: platform.PermBanMembers,
			Bot:    platform.PermBanMembers,
		},
	},
	{
		parse: regexp.MustCompile(`(?i)^help(?:\s+(?<topic>.+))?$`),
		fn:    command.Help,
		name:  "help",
	},
}
