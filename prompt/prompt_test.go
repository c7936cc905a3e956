package prompt_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cardinalbot/cardinal/prompt"
)

// waitPending waits until r has n pending prompts.
func waitPending(t *testing.T, r *prompt.Registry, n int) {
	t.Helper()
	for range 1000 {
		if r.Pending() == n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("never reached %d pending prompts", n)
}

func TestDeliver(t *testing.T) {
	r := prompt.New(time.Minute)
	if r.Deliver("c", "u", "early") {
		t.Error("delivered without a prompt")
	}
	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		s, err := r.Wait(context.Background(), "c", "u")
		done <- result{s, err}
	}()
	waitPending(t, r, 1)
	if r.Deliver("c", "v", "other user") {
		t.Error("delivered another user's message")
	}
	if r.Deliver("d", "u", "other channel") {
		t.Error("delivered a message from another channel")
	}
	if !r.Deliver("c", "u", "yes") {
		t.Fatal("prompt didn't consume reply")
	}
	got := <-done
	if got.err != nil || got.text != "yes" {
		t.Errorf("wrong result: want %q, got %q (%v)", "yes", got.text, got.err)
	}
	if r.Deliver("c", "u", "again") {
		t.Error("prompt consumed two replies")
	}
	waitPending(t, r, 0)
}

func TestTimeout(t *testing.T) {
	r := prompt.New(time.Millisecond)
	_, err := r.Wait(context.Background(), "c", "u")
	if !errors.Is(err, prompt.ErrTimeout) {
		t.Errorf("wrong error: want %v, got %v", prompt.ErrTimeout, err)
	}
	if r.Pending() != 0 {
		t.Errorf("timed out prompt still pending")
	}
}

func TestCancel(t *testing.T) {
	r := prompt.New(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Wait(ctx, "c", "u")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("wrong error: want %v, got %v", context.Canceled, err)
	}
}

func TestSupersede(t *testing.T) {
	r := prompt.New(time.Minute)
	first := make(chan error, 1)
	go func() {
		_, err := r.Wait(context.Background(), "c", "u")
		first <- err
	}()
	waitPending(t, r, 1)
	second := make(chan string, 1)
	go func() {
		s, _ := r.Wait(context.Background(), "c", "u")
		second <- s
	}()
	if err := <-first; !errors.Is(err, prompt.ErrSuperseded) {
		t.Errorf("wrong error for first prompt: want %v, got %v", prompt.ErrSuperseded, err)
	}
	waitPending(t, r, 1)
	if !r.Deliver("c", "u", "no") {
		t.Fatal("second prompt didn't consume reply")
	}
	if s := <-second; s != "no" {
		t.Errorf("wrong reply: want %q, got %q", "no", s)
	}
}
