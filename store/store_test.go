package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/cardinalbot/cardinal/store"
)

var dbcount atomic.Uint64

func testStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	k := dbcount.Add(1)
	s, err := store.Open(ctx, fmt.Sprintf("file:store-test-%d.db?mode=memory&cache=shared", k))
	if err != nil {
		t.Fatalf("couldn't open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("couldn't migrate: %v", err)
	}
	return s
}

func TestWhitelist(t *testing.T) {
	type check struct {
		channel string
		ok      bool
	}
	cases := []struct {
		name string
		add  []string
		rem  []string
		chk  []check
	}{
		{
			name: "empty",
			chk: []check{
				{channel: "1", ok: false},
				{channel: "2", ok: false},
			},
		},
		{
			name: "present",
			add:  []string{"1", "2"},
			chk: []check{
				{channel: "1", ok: true},
				{channel: "2", ok: true},
				{channel: "3", ok: false},
			},
		},
		{
			name: "remove",
			add:  []string{"1", "2", "3"},
			rem:  []string{"2"},
			chk: []check{
				{channel: "1", ok: true},
				{channel: "2", ok: false},
				{channel: "3", ok: true},
			},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			s := testStore(t)
			for _, v := range c.add {
				if err := s.Whitelist(ctx, v); err != nil {
					t.Errorf("couldn't whitelist %q: %v", v, err)
				}
			}
			for _, v := range c.rem {
				if err := s.Unwhitelist(ctx, v); err != nil {
					t.Errorf("couldn't unwhitelist %q: %v", v, err)
				}
			}
			for _, v := range c.chk {
				ok, err := s.Whitelisted(ctx, v.channel)
				if err != nil {
					t.Errorf("couldn't check %q: %v", v.channel, err)
				}
				if ok != v.ok {
					t.Errorf("wrong whitelist status for %q: want %t, got %t", v.channel, v.ok, ok)
				}
			}
		})
	}
}

func TestWhitelistIndependent(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	if err := s.InsertOptin(ctx, store.OptinChannel{ChannelID: "1", RoleID: "10", GuildID: "100"}); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertJoinable(ctx, "1"); err != nil {
		t.Fatal(err)
	}
	ok, err := s.Whitelisted(ctx, "1")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("opt-in or joinable state made a channel whitelisted")
	}
}

func TestOptin(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	if _, err := s.Optin(ctx, "1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("wrong error for missing opt-in: want %v, got %v", store.ErrNotFound, err)
	}
	rows := []store.OptinChannel{
		{ChannelID: "1", RoleID: "10", GuildID: "100"},
		{ChannelID: "2", RoleID: "20", GuildID: "100"},
		{ChannelID: "3", RoleID: "30", GuildID: "200"},
	}
	for _, r := range rows {
		if err := s.InsertOptin(ctx, r); err != nil {
			t.Fatalf("couldn't insert %+v: %v", r, err)
		}
	}
	got, err := s.Optin(ctx, "2")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(rows[1], got); diff != "" {
		t.Errorf("wrong row (-want +got):\n%s", diff)
	}
	g, err := s.GuildOptins(ctx, "100")
	if err != nil {
		t.Fatal(err)
	}
	less := func(a, b store.OptinChannel) bool { return a.ChannelID < b.ChannelID }
	if diff := cmp.Diff(rows[:2], g, cmpopts.SortSlices(less)); diff != "" {
		t.Errorf("wrong guild rows (-want +got):\n%s", diff)
	}
	if err := s.DeleteOptin(ctx, "2"); err != nil {
		t.Errorf("couldn't delete: %v", err)
	}
	if err := s.DeleteOptin(ctx, "2"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("wrong error deleting twice: want %v, got %v", store.ErrNotFound, err)
	}
	if _, err := s.Optin(ctx, "2"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("row survived deletion: %v", err)
	}
}

func TestInsertOptinConflict(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	first := store.OptinChannel{ChannelID: "1", RoleID: "10", GuildID: "100"}
	if err := s.InsertOptin(ctx, first); err != nil {
		t.Fatal(err)
	}
	err := s.InsertOptin(ctx, store.OptinChannel{ChannelID: "1", RoleID: "11", GuildID: "100"})
	if !errors.Is(err, store.ErrExists) {
		t.Errorf("wrong error for duplicate: want %v, got %v", store.ErrExists, err)
	}
	got, err := s.Optin(ctx, "1")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first, got); diff != "" {
		t.Errorf("duplicate insert modified row (-want +got):\n%s", diff)
	}
}

func TestInsertOptinConcurrent(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	const n = 8
	var wg sync.WaitGroup
	var won atomic.Int32
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.InsertOptin(ctx, store.OptinChannel{ChannelID: "1", RoleID: fmt.Sprint(i), GuildID: "100"})
			switch {
			case err == nil:
				won.Add(1)
			case errors.Is(err, store.ErrExists): // do nothing
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if got := won.Load(); got != 1 {
		t.Errorf("wrong number of successful inserts: want 1, got %d", got)
	}
	g, err := s.GuildOptins(ctx, "100")
	if err != nil {
		t.Fatal(err)
	}
	if len(g) != 1 {
		t.Errorf("wrong number of rows: want 1, got %d", len(g))
	}
}

func TestJoinable(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	for _, r := range []string{"3", "1", "2"} {
		if err := s.InsertJoinable(ctx, r); err != nil {
			t.Fatalf("couldn't insert %q: %v", r, err)
		}
	}
	if err := s.InsertJoinable(ctx, "1"); !errors.Is(err, store.ErrExists) {
		t.Errorf("wrong error for duplicate: want %v, got %v", store.ErrExists, err)
	}
	if err := s.DeleteJoinable(ctx, "2"); err != nil {
		t.Errorf("couldn't delete: %v", err)
	}
	if err := s.DeleteJoinable(ctx, "4"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("wrong error deleting missing role: want %v, got %v", store.ErrNotFound, err)
	}
	got, err := s.JoinableRoles(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"1", "3"}, got); diff != "" {
		t.Errorf("wrong joinable roles (-want +got):\n%s", diff)
	}
	for _, c := range []struct {
		role string
		ok   bool
	}{{"1", true}, {"2", false}, {"3", true}} {
		ok, err := s.Joinable(ctx, c.role)
		if err != nil {
			t.Fatal(err)
		}
		if ok != c.ok {
			t.Errorf("wrong joinable status for %q: want %t, got %t", c.role, c.ok, ok)
		}
	}
}

func TestTxRollback(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	fail := errors.New("fail")
	err := s.Tx(ctx, func(tx *store.Store) error {
		if err := tx.InsertJoinable(ctx, "1"); err != nil {
			return err
		}
		if err := tx.InsertOptin(ctx, store.OptinChannel{ChannelID: "1", RoleID: "1", GuildID: "1"}); err != nil {
			return err
		}
		return fail
	})
	if !errors.Is(err, fail) {
		t.Errorf("wrong error from tx: want %v, got %v", fail, err)
	}
	ok, err := s.Joinable(ctx, "1")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("joinable role survived rollback")
	}
	if _, err := s.Optin(ctx, "1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("opt-in row survived rollback: %v", err)
	}
}
