package command

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/cardinalbot/cardinal/actions"
	"github.com/cardinalbot/cardinal/gate"
	"github.com/cardinalbot/cardinal/metrics"
	"github.com/cardinalbot/cardinal/platform"
	"github.com/cardinalbot/cardinal/platform/platformtest"
	"github.com/cardinalbot/cardinal/prompt"
	"github.com/cardinalbot/cardinal/store"
)

var dbcount atomic.Uint64

const (
	guild   = "100000000000000001"
	general = "200000000000000001"
	author  = "300000000000000001"
	bot     = "300000000000000002"
)

type fixture struct {
	robo *Robot
	s    *store.Store
	p    *platformtest.Platform
}

func testRobot(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	k := dbcount.Add(1)
	s, err := store.Open(ctx, fmt.Sprintf("file:command-test-%d.db?mode=memory&cache=shared", k))
	if err != nil {
		t.Fatalf("couldn't open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("couldn't migrate: %v", err)
	}
	p := platformtest.New(bot)
	p.AddGuild(guild)
	p.AddChannel(guild, general, "general", 0)
	p.AddMember(guild, author, "author")
	p.AddMember(guild, bot, "cardinal")
	g := gate.New(s, nil)
	m := metrics.New()
	robo := &Robot{
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Platform: p,
		Gate:     g,
		Actions:  actions.New(s, g, p, nil, m),
		Prompts:  prompt.New(time.Minute),
		Metrics:  m,
		Prefix:   "!",
	}
	return &fixture{robo: robo, s: s, p: p}
}

func (f *fixture) call(name string, args map[string]string) *Invocation {
	return &Invocation{
		Name:      name,
		GuildID:   guild,
		GuildName: "Guild",
		ChannelID: general,
		Author:    &platform.Member{UserID: author, Name: "author"},
		Args:      args,
		Trace:     "test",
	}
}

// replies returns the text of each message sent.
func (f *fixture) replies() []string {
	var r []string
	for _, m := range f.p.Sent() {
		r = append(r, m.Text)
	}
	return r
}

func TestAuthorize(t *testing.T) {
	cases := []struct {
		name      string
		whitelist bool
		author    int64
		bot       int64
		req       Requirements
		ok        bool
		reply     []string
	}{
		{
			name: "none",
			req:  Requirements{},
			ok:   true,
		},
		{
			name:  "not-whitelisted",
			req:   Requirements{Whitelist: true},
			reply: []string{"Channel <#" + general + "> is not whitelisted."},
		},
		{
			name:      "whitelisted",
			whitelist: true,
			req:       Requirements{Whitelist: true},
			ok:        true,
		},
		{
			name:  "whitelist-first",
			req:   Requirements{Whitelist: true, Author: platform.PermManageChannels},
			reply: []string{"Channel <#" + general + "> is not whitelisted."},
		},
		{
			name:      "author-missing",
			whitelist: true,
			bot:       platform.PermManageRoles | platform.PermManageChannels,
			req:       Requirements{Whitelist: true, Author: platform.PermManageChannels, Bot: platform.PermManageRoles},
			reply:     []string{"You are missing Manage Channels permission(s) to run this command."},
		},
		{
			name:   "bot-missing",
			author: platform.PermKickMembers,
			req:    Requirements{Author: platform.PermKickMembers, Bot: platform.PermKickMembers},
			reply:  []string{"Bot requires Kick Members permission(s) to run this command."},
		},
		{
			name:   "admin",
			author: platform.PermAdministrator,
			bot:    platform.PermAdministrator,
			req:    Requirements{Author: platform.PermBanMembers, Bot: platform.PermBanMembers | platform.PermManageRoles},
			ok:     true,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ctx := context.Background()
			f := testRobot(t)
			if c.whitelist {
				if err := f.s.Whitelist(ctx, general); err != nil {
					t.Fatal(err)
				}
			}
			f.p.Grant(general, author, c.author)
			f.p.Grant(general, bot, c.bot)
			ok := Authorize(ctx, f.robo, f.call("test", nil), c.req)
			if ok != c.ok {
				t.Errorf("wrong authorization: want %t, got %t", c.ok, ok)
			}
			if diff := cmp.Diff(c.reply, f.replies()); diff != "" {
				t.Errorf("wrong replies (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPermNames(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "unknown"},
		{platform.PermManageRoles, "Manage Roles"},
		{platform.PermKickMembers | platform.PermBanMembers, "Kick Members and Ban Members"},
		{platform.PermKickMembers | platform.PermBanMembers | platform.PermManageRoles, "Kick Members, Ban Members, and Manage Roles"},
	}
	for _, c := range cases {
		if got := permNames(c.in); got != c.want {
			t.Errorf("permNames(%#x): want %q, got %q", c.in, c.want, got)
		}
	}
}

func TestPruneDays(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 1},
		{"0", 0},
		{"3", 3},
		{"-2", 0},
		{"12", 7},
		{"99999999999999999999999", 7},
		{"-99999999999999999999999", 0},
	}
	for _, c := range cases {
		if got := pruneDays(c.in); got != c.want {
			t.Errorf("pruneDays(%q): want %d, got %d", c.in, c.want, got)
		}
	}
}

func TestFindChannel(t *testing.T) {
	ctx := context.Background()
	p := platformtest.New(bot)
	p.AddGuild(guild)
	p.AddGuild("100000000000000002")
	p.AddChannel(guild, general, "General", 0)
	p.AddChannel("100000000000000002", "200000000000000009", "elsewhere", 0)
	cases := []struct {
		name string
		arg  string
		want string
	}{
		{"mention", "<#" + general + ">", general},
		{"id", general, general},
		{"name", "general", general},
		{"hash", "#GENERAL", general},
		{"missing", "random", ""},
		{"other-guild", "<#200000000000000009>", ""},
		{"other-guild-name", "elsewhere", ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ch, err := findChannel(ctx, p, guild, c.arg)
			if c.want == "" {
				if err == nil {
					t.Errorf("resolved %q to %+v", c.arg, ch)
				}
				return
			}
			if err != nil {
				t.Fatalf("couldn't resolve %q: %v", c.arg, err)
			}
			if ch.ID != c.want {
				t.Errorf("wrong channel: want %s, got %s", c.want, ch.ID)
			}
		})
	}
}

func TestFindRoleMember(t *testing.T) {
	ctx := context.Background()
	p := platformtest.New(bot)
	p.AddGuild(guild)
	p.AddRole(guild, "400000000000000001", "Straße", 1)
	p.AddMember(guild, author, "Someone")
	roles := []struct {
		arg  string
		want string
	}{
		{"<@&400000000000000001>", "400000000000000001"},
		{"400000000000000001", "400000000000000001"},
		{"STRASSE", "400000000000000001"},
		{"@straße", "400000000000000001"},
		{"<@&400000000000000002>", ""},
	}
	for _, c := range roles {
		r, err := findRole(ctx, p, guild, c.arg)
		if c.want == "" {
			if err == nil {
				t.Errorf("resolved role %q to %+v", c.arg, r)
			}
			continue
		}
		if err != nil || r.ID != c.want {
			t.Errorf("wrong role for %q: want %s, got %+v (%v)", c.arg, c.want, r, err)
		}
	}
	members := []struct {
		arg  string
		want string
	}{
		{"<@" + author + ">", author},
		{"<@!" + author + ">", author},
		{author, author},
		{"someone", author},
		{"<@300000000000000009>", ""},
		{"nobody", ""},
	}
	for _, c := range members {
		m, err := findMember(ctx, p, guild, c.arg)
		if c.want == "" {
			if err == nil {
				t.Errorf("resolved member %q to %+v", c.arg, m)
			}
			continue
		}
		if err != nil || m.UserID != c.want {
			t.Errorf("wrong member for %q: want %s, got %+v (%v)", c.arg, c.want, m, err)
		}
	}
}
