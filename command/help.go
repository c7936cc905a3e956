package command

import (
	"context"
	"fmt"
	"strings"
)

// Usage is a line of help.
type Usage struct {
	Syntax string
	Help   string
}

// Usages is the help for each command.
var Usages = []Usage{
	{"channel join|show <channel>", "Join an opt-in channel."},
	{"channel leave|hide [channel]", "Leave an opt-in channel, by default this one."},
	{"channel list", "List the channels that can be joined."},
	{"channel stats", "Show the member count of each opt-in channel."},
	{"channel opt-in enable [channel]", "Make a channel opt-in. Requires Manage Channels."},
	{"channel opt-in disable [channel]", "Make an opt-in channel public again. Requires Manage Channels."},
	{"role join <role>", "Join a role."},
	{"role leave <role>", "Leave a role."},
	{"role list", "List the roles that can be joined."},
	{"role stats", "Show the member count of each joinable role."},
	{"role add <role>", "Mark a role as joinable. Requires Manage Roles."},
	{"role remove <role>", "Unmark a joinable role. Requires Manage Roles."},
	{"role create <name>", "Create a joinable role. Requires Manage Roles."},
	{"role delete <role>", "Delete a role. Requires Manage Roles."},
	{"kick <member> [reason]", "Kick a member. Requires Kick Members."},
	{"ban <member> [prune days] [reason]", "Ban a member. Requires Ban Members."},
	{"help [command]", "Show this help."},
}

// Help lists commands.
//   - topic: Optional command name to limit help to.
func Help(ctx context.Context, robo *Robot, call *Invocation) {
	topic := strings.ToLower(strings.TrimSpace(call.Args["topic"]))
	var b strings.Builder
	b.WriteString("```\n")
	n := 0
	for _, u := range Usages {
		if topic != "" && !strings.HasPrefix(u.Syntax, topic) {
			continue
		}
		fmt.Fprintf(&b, "%s%s\n    %s\n", robo.Prefix, u.Syntax, u.Help)
		n++
	}
	b.WriteString("```")
	if n == 0 {
		robo.reply(ctx, call, Refused, fmt.Sprintf("No command called %q found.", topic))
		return
	}
	robo.reply(ctx, call, OK, b.String())
}
