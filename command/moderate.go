package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cardinalbot/cardinal/actions"
)

// Kick kicks a member.
//   - user: Member to kick by mention, ID, or name.
//   - reason: Optional reason for the audit log.
func Kick(ctx context.Context, robo *Robot, call *Invocation) {
	m := robo.memberArg(ctx, call, call.Args["user"])
	if m == nil {
		return
	}
	if err := robo.Actions.Kick(ctx, call.GuildID, m.UserID, call.Args["reason"]); err != nil {
		robo.fail(ctx, call, err, "couldn't kick")
		return
	}
	robo.reply(ctx, call, OK, fmt.Sprintf("User **%s** (%s) was kicked by %s.", m.Name, m.UserID, call.Author.Mention()))
}

// Ban bans a member.
//   - user: Member to ban by mention, ID, or name.
//   - days: Optional number of days of messages to prune, default 1.
//   - reason: Optional reason for the audit log.
func Ban(ctx context.Context, robo *Robot, call *Invocation) {
	m := robo.memberArg(ctx, call, call.Args["user"])
	if m == nil {
		return
	}
	days := pruneDays(call.Args["days"])
	if err := robo.Actions.Ban(ctx, call.GuildID, m.UserID, call.Args["reason"], days); err != nil {
		robo.fail(ctx, call, err, "couldn't ban")
		return
	}
	robo.reply(ctx, call, OK, fmt.Sprintf("User **%s** (%s) was banned by %s.", m.Name, m.UserID, call.Author.Mention()))
}

// pruneDays parses a prune day count. Numbers too large to parse saturate.
func pruneDays(s string) int {
	if s == "" {
		return actions.DefaultPruneDays
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		if strings.HasPrefix(s, "-") {
			return 0
		}
		return actions.MaxPruneDays
	}
	return actions.ClampPruneDays(n)
}
