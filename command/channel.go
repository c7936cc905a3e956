package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cardinalbot/cardinal/actions"
	"github.com/cardinalbot/cardinal/platform"
)

// statsColor is the color of stats embeds.
const statsColor = 0x38CBF0

// ChannelJoin gives the author access to an opt-in channel.
//   - channel: Channel to join by mention, ID, or name.
func ChannelJoin(ctx context.Context, robo *Robot, call *Invocation) {
	ch := robo.channelArg(ctx, call, call.Args["channel"])
	if ch == nil {
		return
	}
	_, err := robo.Actions.JoinOptin(ctx, call.Author.UserID, ch.ID)
	switch {
	case err == nil:
		robo.reply(ctx, call, OK, fmt.Sprintf("User %s joined channel %s.", call.Author.Mention(), ch.Mention()))
	case errors.Is(err, actions.ErrNotOptin):
		robo.reply(ctx, call, Refused, fmt.Sprintf("Channel %s is not specified as an opt-in channel.", ch.Mention()))
	case errors.Is(err, actions.ErrRoleMissing):
		robo.reply(ctx, call, Refused, "The role for this channel no longer exists. Removing from database.")
	default:
		robo.fail(ctx, call, err, "couldn't join opt-in channel")
	}
}

// ChannelLeave revokes the author's access to an opt-in channel.
//   - channel: Channel to leave. Defaults to the current channel.
func ChannelLeave(ctx context.Context, robo *Robot, call *Invocation) {
	ch := robo.channelArg(ctx, call, call.Args["channel"])
	if ch == nil {
		return
	}
	_, err := robo.Actions.LeaveOptin(ctx, call.Author.UserID, ch.ID)
	switch {
	case err == nil:
		robo.reply(ctx, call, OK, fmt.Sprintf("User %s left channel %s.", call.Author.Mention(), ch.Mention()))
	case errors.Is(err, actions.ErrNotOptin):
		robo.reply(ctx, call, Refused, fmt.Sprintf("Channel %s is not specified as an opt-in channel.", ch.Mention()))
	case errors.Is(err, actions.ErrRoleMissing):
		robo.reply(ctx, call, Refused, "The role for this channel no longer exists. Removing from database.")
	default:
		robo.fail(ctx, call, err, "couldn't leave opt-in channel")
	}
}

// ChannelList lists the guild's opt-in channels.
func ChannelList(ctx context.Context, robo *Robot, call *Invocation) {
	cs, err := robo.Actions.OptinChannels(ctx, call.GuildID)
	if err != nil {
		robo.fail(ctx, call, err, "couldn't list opt-in channels")
		return
	}
	var b strings.Builder
	b.WriteString("Channels that can be joined through this bot:```\n")
	for _, c := range cs {
		b.WriteString("#")
		b.WriteString(c.Name)
		b.WriteString("\n")
	}
	b.WriteString("```")
	robo.reply(ctx, call, OK, b.String())
}

// ChannelStats shows the member count of each opt-in channel's role.
func ChannelStats(ctx context.Context, robo *Robot, call *Invocation) {
	stats, err := robo.Actions.OptinStats(ctx, call.GuildID)
	if err != nil {
		robo.fail(ctx, call, err, "couldn't count opt-in channel members")
		return
	}
	e := &platform.Embed{Title: "Channel stats for " + call.GuildName, Color: statsColor}
	for _, s := range stats {
		e.Fields = append(e.Fields, platform.Field{Name: "#" + s.Role.Name, Value: strconv.Itoa(s.Members)})
	}
	robo.replyEmbed(ctx, call, e)
}

// OptinEnable makes a channel opt-in.
//   - channel: Channel to make opt-in. Defaults to the current channel.
func OptinEnable(ctx context.Context, robo *Robot, call *Invocation) {
	ch := robo.channelArg(ctx, call, call.Args["channel"])
	if ch == nil {
		return
	}
	_, err := robo.Actions.EnableOptin(ctx, ch)
	switch {
	case err == nil:
		robo.reply(ctx, call, OK, fmt.Sprintf("Opt-in enabled for channel %s.", ch.Mention()))
	case errors.Is(err, actions.ErrAlreadyOptin):
		robo.reply(ctx, call, Refused, fmt.Sprintf("Channel %s is already opt-in.", ch.Mention()))
	default:
		robo.fail(ctx, call, err, "couldn't enable opt-in")
	}
}

// OptinDisable makes an opt-in channel public again.
//   - channel: Channel to make public. Defaults to the current channel.
func OptinDisable(ctx context.Context, robo *Robot, call *Invocation) {
	ch := robo.channelArg(ctx, call, call.Args["channel"])
	if ch == nil {
		return
	}
	r, err := robo.Actions.DisableOptin(ctx, ch)
	if errors.Is(err, actions.ErrNotOptin) {
		robo.reply(ctx, call, Refused, fmt.Sprintf("Channel %s is not opt-in", ch.Mention()))
		return
	}
	if r.ChannelID == "" {
		robo.fail(ctx, call, err, "couldn't disable opt-in")
		return
	}
	msg := fmt.Sprintf("Opt-in disabled for channel %s.", ch.Mention())
	if r.RoleMissing {
		msg = "Could not find role. Was it already deleted?\n" + msg
	}
	if err != nil {
		robo.failWith(ctx, call, err, "opt-in disabled with errors", msg+" Some changes to the server could not be made.")
		return
	}
	robo.reply(ctx, call, OK, msg)
}

// ChannelUsage explains the channel command.
func ChannelUsage(ctx context.Context, robo *Robot, call *Invocation) {
	robo.reply(ctx, call, Refused, fmt.Sprintf("Invalid command passed. "+
		`Possible choices are "show", "hide", and "opt-in"(mod only).`+"\n"+
		"Please refer to `%shelp channel` for further information.", robo.Prefix))
}

// OptinUsage explains the channel opt-in command.
func OptinUsage(ctx context.Context, robo *Robot, call *Invocation) {
	robo.reply(ctx, call, Refused, `Invalid command passed: possible options are "enable" and "disable".`)
}
