package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cardinalbot/cardinal/actions"
	"github.com/cardinalbot/cardinal/platform"
	"github.com/cardinalbot/cardinal/prompt"
)

// RoleJoin gives the author a joinable role.
//   - role: Role to join by mention, ID, or name.
func RoleJoin(ctx context.Context, robo *Robot, call *Invocation) {
	r := robo.roleArg(ctx, call, call.Args["role"])
	if r == nil {
		return
	}
	err := robo.Actions.JoinRole(ctx, call.GuildID, call.Author.UserID, r.ID)
	switch {
	case err == nil:
		robo.reply(ctx, call, OK, fmt.Sprintf("User %s joined role %q", call.Author.Mention(), r.Name))
	case errors.Is(err, actions.ErrNotJoinable):
		robo.reply(ctx, call, Refused, fmt.Sprintf("Role %q is not marked as a joinable role.", r.Name))
	default:
		robo.fail(ctx, call, err, "couldn't join role")
	}
}

// RoleLeave takes a joinable role from the author.
//   - role: Role to leave by mention, ID, or name.
func RoleLeave(ctx context.Context, robo *Robot, call *Invocation) {
	r := robo.roleArg(ctx, call, call.Args["role"])
	if r == nil {
		return
	}
	err := robo.Actions.LeaveRole(ctx, call.GuildID, call.Author.UserID, r.ID)
	switch {
	case err == nil:
		robo.reply(ctx, call, OK, fmt.Sprintf("User %s left role %q", call.Author.Mention(), r.Name))
	case errors.Is(err, actions.ErrNotJoinable):
		robo.reply(ctx, call, Refused, fmt.Sprintf("Role %q cannot be left through this bot.", r.Name))
	default:
		robo.fail(ctx, call, err, "couldn't leave role")
	}
}

// RoleList lists the guild's joinable roles.
func RoleList(ctx context.Context, robo *Robot, call *Invocation) {
	rs, err := robo.Actions.JoinableRoles(ctx, call.GuildID)
	if err != nil {
		robo.fail(ctx, call, err, "couldn't list joinable roles")
		return
	}
	var b strings.Builder
	b.WriteString("Roles that can be joined through this bot:```\n")
	for _, r := range rs {
		b.WriteString(r.Name)
		b.WriteString("\n")
	}
	b.WriteString("```")
	robo.reply(ctx, call, OK, b.String())
}

// RoleStats shows the member count of each joinable role.
func RoleStats(ctx context.Context, robo *Robot, call *Invocation) {
	stats, err := robo.Actions.JoinableStats(ctx, call.GuildID)
	if err != nil {
		robo.fail(ctx, call, err, "couldn't count role members")
		return
	}
	e := &platform.Embed{Title: "Role stats for " + call.GuildName, Color: statsColor}
	for _, s := range stats {
		e.Fields = append(e.Fields, platform.Field{Name: s.Role.Name, Value: strconv.Itoa(s.Members)})
	}
	robo.replyEmbed(ctx, call, e)
}

// RoleAdd marks a role as joinable.
//   - role: Role by mention, ID, or name.
func RoleAdd(ctx context.Context, robo *Robot, call *Invocation) {
	r := robo.roleArg(ctx, call, call.Args["role"])
	if r == nil {
		return
	}
	err := robo.Actions.AddJoinableRole(ctx, r.ID)
	switch {
	case err == nil:
		robo.reply(ctx, call, OK, fmt.Sprintf("Marked role %q as joinable.", r.Name))
	case errors.Is(err, actions.ErrAlreadyJoinable):
		robo.reply(ctx, call, Refused, fmt.Sprintf("Role %q is already marked as a joinable role.", r.Name))
	default:
		robo.fail(ctx, call, err, "couldn't add joinable role")
	}
}

// RoleRemove unmarks a joinable role.
//   - role: Role by mention, ID, or name.
func RoleRemove(ctx context.Context, robo *Robot, call *Invocation) {
	r := robo.roleArg(ctx, call, call.Args["role"])
	if r == nil {
		return
	}
	err := robo.Actions.RemoveJoinableRole(ctx, r.ID)
	switch {
	case err == nil:
		robo.reply(ctx, call, OK, fmt.Sprintf("Removed role %q from list of joinable roles.", r.Name))
	case errors.Is(err, actions.ErrNotJoinable):
		robo.reply(ctx, call, Refused, fmt.Sprintf("Role %q is not marked as a joinable role", r.Name))
	default:
		robo.fail(ctx, call, err, "couldn't remove joinable role")
	}
}

// RoleCreate creates a joinable role.
//   - name: Name of the new role.
func RoleCreate(ctx context.Context, robo *Robot, call *Invocation) {
	name := strings.TrimSpace(call.Args["name"])
	if _, err := robo.Actions.CreateJoinableRole(ctx, call.GuildID, name); err != nil {
		robo.fail(ctx, call, err, "couldn't create joinable role")
		return
	}
	robo.reply(ctx, call, OK, fmt.Sprintf("Created role %q and marked it as joinable.", name))
}

// RoleDelete deletes a role after the author confirms.
//   - role: Role by mention, ID, or name.
func RoleDelete(ctx context.Context, robo *Robot, call *Invocation) {
	r := robo.roleArg(ctx, call, call.Args["role"])
	if r == nil {
		return
	}
	q := fmt.Sprintf("Are you sure you want to delete role %q? Reply with yes or no.", r.Name)
	if err := robo.Platform.Send(ctx, call.ChannelID, q); err != nil {
		robo.fail(ctx, call, err, "couldn't ask for confirmation")
		return
	}
	ans, err := robo.Prompts.Wait(ctx, call.ChannelID, call.Author.UserID)
	switch {
	case err == nil:
	case errors.Is(err, prompt.ErrTimeout):
		robo.reply(ctx, call, Refused, fmt.Sprintf("Timed out waiting for confirmation. Role %q was not deleted.", r.Name))
		return
	case errors.Is(err, prompt.ErrSuperseded):
		robo.reply(ctx, call, Refused, fmt.Sprintf("Role %q was not deleted.", r.Name))
		return
	default:
		robo.fail(ctx, call, err, "couldn't wait for confirmation")
		return
	}
	if !confirmed(ans) {
		robo.reply(ctx, call, Refused, fmt.Sprintf("Role %q was not deleted.", r.Name))
		return
	}
	if err := robo.Actions.DeleteJoinableRole(ctx, call.GuildID, r.ID); err != nil {
		robo.fail(ctx, call, err, "couldn't delete role")
		return
	}
	robo.reply(ctx, call, OK, fmt.Sprintf("Successfully deleted role %q.", r.Name))
}

func confirmed(ans string) bool {
	switch strings.ToLower(strings.TrimSpace(ans)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// RoleUsage explains the role command.
func RoleUsage(ctx context.Context, robo *Robot, call *Invocation) {
	robo.reply(ctx, call, Refused, fmt.Sprintf("Invalid command passed. "+
		`Possible choices are "join", "leave",... `+"\n"+
		"Please refer to `%shelp role` for further information.", robo.Prefix))
}
