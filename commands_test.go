package main

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/cardinalbot/cardinal/platform"
	"github.com/cardinalbot/cardinal/platform/platformtest"
	"github.com/cardinalbot/cardinal/store"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		name   string
		prefix string
		in     string
		text   string
		ok     bool
	}{
		{"empty", "!", "", "", false},
		{"prefix", "!", "!help", "help", true},
		{"spaces", "!", "  !help role  ", "help role", true},
		{"bare-prefix", "!", "!", "", false},
		{"prefix-space", "!", "! help", "", false},
		{"no-prefix", "!", "help", "", false},
		{"long-prefix", "c!", "c!role list", "role list", true},
		{"no-configured-prefix", "", "!help", "", false},
		{"mention", "!", "<@42> help", "help", true},
		{"nick-mention", "!", "<@!42>help", "help", true},
		{"bare-mention", "!", "<@42>", "", true},
		{"mention-prefix-off", "", "<@42> role list", "role list", true},
		{"other-mention", "!", "<@43> help", "", false},
		{"mention-later", "!", "hi <@42>", "", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := parseCommand(c.prefix, "42", c.in)
			if got != c.text {
				t.Errorf("wrong command text: want %q, got %q", c.text, got)
			}
			if ok != c.ok {
				t.Errorf("wrong commandness: want %t, got %t", c.ok, ok)
			}
		})
	}
}

func TestFindCommand(t *testing.T) {
	cases := []struct {
		in   string
		name string
		args map[string]string
	}{
		{"channel join general", "channel-join", map[string]string{"channel": "general"}},
		{"CHANNEL show #general", "channel-join", map[string]string{"channel": "#general"}},
		{"channel join", "channel-usage", nil},
		{"channel leave", "channel-leave", map[string]string{"channel": ""}},
		{"channel hide general", "channel-leave", map[string]string{"channel": "general"}},
		{"channel list", "channel-list", nil},
		{"channel stats", "channel-stats", nil},
		{"channel opt-in enable", "optin-enable", map[string]string{"channel": ""}},
		{"channel optin disable <#123>", "optin-disable", map[string]string{"channel": "<#123>"}},
		{"channel opt-in", "optin-usage", nil},
		{"channel opt-in frobnicate", "optin-usage", nil},
		{"channel", "channel-usage", nil},
		{"channel frobnicate", "channel-usage", nil},
		{"channelz", "", nil},
		{"role join Artists", "role-join", map[string]string{"role": "Artists"}},
		{"role leave <@&5>", "role-leave", map[string]string{"role": "<@&5>"}},
		{"role join", "role-usage", nil},
		{"role list", "role-list", nil},
		{"role stats", "role-stats", nil},
		{"role add Artists", "role-add", map[string]string{"role": "Artists"}},
		{"role remove Artists", "role-remove", map[string]string{"role": "Artists"}},
		{"role create Cool People", "role-create", map[string]string{"name": "Cool People"}},
		{"role delete Artists", "role-delete", map[string]string{"role": "Artists"}},
		{"role", "role-usage", nil},
		{"kick <@123>", "kick", map[string]string{"user": "<@123>", "reason": ""}},
		{"kick bob being rude", "kick", map[string]string{"user": "bob", "reason": "being rude"}},
		{"ban bob", "ban", map[string]string{"user": "bob", "days": "", "reason": ""}},
		{"ban bob 3 spam", "ban", map[string]string{"user": "bob", "days": "3", "reason": "spam"}},
		{"ban bob spam", "ban", map[string]string{"user": "bob", "days": "", "reason": "spam"}},
		{"ban bob 3rd offense", "ban", map[string]string{"user": "bob", "days": "", "reason": "3rd offense"}},
		{"ban bob -2", "ban", map[string]string{"user": "bob", "days": "-2", "reason": ""}},
		{"help", "help", map[string]string{"topic": ""}},
		{"help role", "help", map[string]string{"topic": "role"}},
		{"hello", "", nil},
		{"", "", nil},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			cmd, args := findCommand(guildCommands, c.in)
			if c.name == "" {
				if cmd != nil {
					t.Errorf("matched %s", cmd.name)
				}
				return
			}
			if cmd == nil {
				t.Fatalf("no match, want %s", c.name)
			}
			if cmd.name != c.name {
				t.Errorf("wrong command: want %s, got %s", c.name, cmd.name)
			}
			if diff := cmp.Diff(c.args, args); diff != "" {
				t.Errorf("wrong args (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCommandNamesUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, c := range guildCommands {
		if seen[c.name] {
			t.Errorf("duplicate command name %s", c.name)
		}
		seen[c.name] = true
	}
}

var dbcount atomic.Uint64

const (
	guild   = "100000000000000001"
	general = "200000000000000001"
	author  = "300000000000000001"
	bot     = "300000000000000002"
)

func testRobot(t *testing.T) (*Robot, *store.Store, *platformtest.Platform, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	k := dbcount.Add(1)
	st, err := store.Open(ctx, fmt.Sprintf("file:main-test-%d.db?mode=memory&cache=shared", k))
	if err != nil {
		t.Fatalf("couldn't open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("couldn't migrate: %v", err)
	}
	p := platformtest.New(bot)
	p.AddGuild(guild)
	p.AddChannel(guild, general, "general", 0)
	p.AddMember(guild, author, "author")
	p.AddMember(guild, bot, "cardinal")
	robo := New(st, 2, time.Minute)
	robo.SetPlatform(p, "!")
	return robo, st, p, ctx
}

func msg(text string) *message {
	return &message{
		ID:        "1",
		GuildID:   guild,
		GuildName: "Guild",
		ChannelID: general,
		Author:    &platform.Member{UserID: author, Name: "author"},
		Text:      text,
	}
}

// waitSent waits for the platform to have sent n messages.
func waitSent(t *testing.T, p *platformtest.Platform, n int) []platformtest.Sent {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s := p.Sent(); len(s) >= n {
			return s
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d messages, have %v", n, p.Sent())
	return nil
}

func TestOnMessageHelp(t *testing.T) {
	robo, _, p, ctx := testRobot(t)
	robo.onMessage(ctx, msg("!help kick"))
	s := waitSent(t, p, 1)
	if s[0].Channel != general {
		t.Errorf("reply went to %s", s[0].Channel)
	}
	if !strings.Contains(s[0].Text, "!kick <member> [reason]") {
		t.Errorf("wrong help: %q", s[0].Text)
	}
	if got := testutil.ToFloat64(robo.metrics.MessagesCount); got != 1 {
		t.Errorf("wrong message count: want 1, got %v", got)
	}
}

func TestOnMessageNotWhitelisted(t *testing.T) {
	robo, _, p, ctx := testRobot(t)
	robo.onMessage(ctx, msg("!role list"))
	s := waitSent(t, p, 1)
	want := fmt.Sprintf("Channel <#%s> is not whitelisted.", general)
	if s[0].Text != want {
		t.Errorf("wrong reply: want %q, got %q", want, s[0].Text)
	}
}

func TestOnMessageBotPermissions(t *testing.T) {
	robo, st, p, ctx := testRobot(t)
	if err := st.Whitelist(ctx, general); err != nil {
		t.Fatal(err)
	}
	robo.onMessage(ctx, msg("<@"+bot+"> channel list"))
	s := waitSent(t, p, 1)
	want := "Bot requires Manage Roles permission(s) to run this command."
	if s[0].Text != want {
		t.Errorf("wrong reply: want %q, got %q", want, s[0].Text)
	}
}

func TestOnMessageIgnored(t *testing.T) {
	robo, _, p, ctx := testRobot(t)
	for _, text := range []string{"hello", "!", "!frobnicate", "<@" + bot + ">"} {
		robo.onMessage(ctx, msg(text))
	}
	// A command afterward is still handled, and it is the only reply.
	robo.onMessage(ctx, msg("!help"))
	waitSent(t, p, 1)
	time.Sleep(10 * time.Millisecond)
	if s := p.Sent(); len(s) != 1 {
		t.Errorf("wrong replies: %v", s)
	}
	if got := testutil.ToFloat64(robo.metrics.MessagesCount); got != 5 {
		t.Errorf("wrong message count: want 5, got %v", got)
	}
}

func TestOnMessagePrompt(t *testing.T) {
	robo, _, p, ctx := testRobot(t)
	ans := make(chan string, 1)
	go func() {
		s, err := robo.prompts.Wait(ctx, general, author)
		if err != nil {
			t.Errorf("wait failed: %v", err)
		}
		ans <- s
	}()
	deadline := time.Now().Add(5 * time.Second)
	for robo.prompts.Pending() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("prompt never registered")
		}
		time.Sleep(time.Millisecond)
	}
	// Looks like a command, but the prompt takes it first.
	robo.onMessage(ctx, msg("!help"))
	select {
	case s := <-ans:
		if s != "!help" {
			t.Errorf("wrong answer: want %q, got %q", "!help", s)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("prompt never answered")
	}
	time.Sleep(10 * time.Millisecond)
	if s := p.Sent(); len(s) != 0 {
		t.Errorf("prompt reply ran as a command: %v", s)
	}
}
