// Package prompt lets a command ask a user a question and wait for the
// user's next message in the same channel.
package prompt

import (
	"context"
	"errors"
	"time"

	"github.com/cardinalbot/cardinal/syncmap"
)

// DefaultTimeout is the default time to wait for a reply.
const DefaultTimeout = 60 * time.Second

var (
	// ErrTimeout means no reply arrived in time.
	ErrTimeout = errors.New("timed out waiting for reply")
	// ErrSuperseded means a newer prompt for the same user and channel
	// replaced the one being waited on.
	ErrSuperseded = errors.New("prompt superseded")
)

type key struct {
	channel, user string
}

// Registry holds pending prompts.
type Registry struct {
	waiting *syncmap.Map[key, chan string]
	timeout time.Duration
}

// New creates a prompt registry. If timeout is not positive, DefaultTimeout
// is used.
func New(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Registry{
		waiting: syncmap.New[key, chan string](),
		timeout: timeout,
	}
}

// Wait waits for the next message from user in channel. Only one prompt per
// user and channel is pending at a time; a new Wait supersedes an older one.
func (r *Registry) Wait(ctx context.Context, channel, user string) (string, error) {
	k := key{channel, user}
	ch := make(chan string, 1)
	if old, ok := r.waiting.Swap(k, ch); ok {
		close(old)
	}
	defer r.waiting.DeleteIf(k, func(c chan string) bool { return c == ch })
	t := time.NewTimer(r.timeout)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-t.C:
		return "", ErrTimeout
	case s, ok := <-ch:
		if !ok {
			return "", ErrSuperseded
		}
		return s, nil
	}
}

// Deliver hands a message to a pending prompt. It reports whether a prompt
// consumed the message.
func (r *Registry) Deliver(channel, user, text string) bool {
	ch, ok := r.waiting.LoadAndDelete(key{channel, user})
	if !ok {
		return false
	}
	// Deleting under the map's lock means no one else sends or closes.
	ch <- text
	return true
}

// Pending returns the number of pending prompts.
func (r *Registry) Pending() int {
	return r.waiting.Len()
}
