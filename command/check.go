package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cardinalbot/cardinal/gate"
	"github.com/cardinalbot/cardinal/platform"
)

// Requirements are the preconditions of a command.
type Requirements struct {
	// Whitelist requires the invocation channel to be whitelisted.
	Whitelist bool
	// Author is the permissions the invoking member needs in the channel.
	Author int64
	// Bot is the permissions the bot needs in the channel.
	Bot int64
}

// Authorize checks a command's requirements. If they are not met, it replies
// with the reason and returns false. The whitelist is checked first.
func Authorize(ctx context.Context, robo *Robot, call *Invocation, req Requirements) bool {
	if req.Whitelist {
		err := robo.Gate.Check(ctx, call.ChannelID)
		switch {
		case err == nil:
		case errors.Is(err, gate.ErrNotWhitelisted):
			robo.reply(ctx, call, Refused, fmt.Sprintf("Channel <#%s> is not whitelisted.", call.ChannelID))
			return false
		default:
			robo.fail(ctx, call, err, "whitelist check failed")
			return false
		}
	}
	if req.Author != 0 {
		p, err := robo.Platform.Permissions(ctx, call.Author.UserID, call.ChannelID)
		if err != nil {
			robo.fail(ctx, call, err, "couldn't get author permissions")
			return false
		}
		if !platform.Has(p, req.Author) {
			robo.reply(ctx, call, Refused, fmt.Sprintf("You are missing %s permission(s) to run this command.", permNames(req.Author&^p)))
			return false
		}
	}
	if req.Bot != 0 {
		p, err := robo.Platform.Permissions(ctx, robo.Platform.Self(), call.ChannelID)
		if err != nil {
			robo.fail(ctx, call, err, "couldn't get bot permissions")
			return false
		}
		if !platform.Has(p, req.Bot) {
			robo.reply(ctx, call, Refused, fmt.Sprintf("Bot requires %s permission(s) to run this command.", permNames(req.Bot&^p)))
			return false
		}
	}
	return true
}

var permissionNames = []struct {
	bit  int64
	name string
}{
	{platform.PermKickMembers, "Kick Members"},
	{platform.PermBanMembers, "Ban Members"},
	{platform.PermAdministrator, "Administrator"},
	{platform.PermManageChannels, "Manage Channels"},
	{platform.PermViewChannel, "View Channel"},
	{platform.PermManageRoles, "Manage Roles"},
}

// permNames formats permission bits for people.
func permNames(p int64) string {
	var names []string
	for _, n := range permissionNames {
		if p&n.bit != 0 {
			names = append(names, n.name)
		}
	}
	switch len(names) {
	case 0:
		return "unknown"
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + ", and " + names[len(names)-1]
	}
}
