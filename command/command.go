package command

import (
	"context"

	"github.com/cardinalbot/cardinal/platform"
)

// Invocation is a command invocation. An Invocation and its fields must not
// be modified or retained by any command.
type Invocation struct {
	// Name is the command's name for logs and metrics.
	Name string
	// GuildID is the guild where the invocation occurred.
	GuildID string
	// GuildName is the guild's display name.
	GuildName string
	// ChannelID is the channel where the invocation occurred.
	ChannelID string
	// Author is the member who invoked the command. It is always non-nil.
	Author *platform.Member
	// Args is the parsed arguments to the command.
	Args map[string]string
	// Trace identifies the invocation in logs.
	Trace string
}

// Func executes a command. A Func sends exactly one reply.
type Func func(ctx context.Context, robo *Robot, call *Invocation)
