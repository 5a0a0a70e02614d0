// Package mailbox implements the Mailbox: per-recipient JSON inboxes
// supporting send, poll (with timeout), and read-mark, generalizing the
// single local-mailbox-file pattern into one inbox file per recipient
// under a project/team directory.
package mailbox

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/mnthe/agentcore/internal/kernelerr"
	"github.com/mnthe/agentcore/internal/model"
	"github.com/mnthe/agentcore/internal/paths"
	"github.com/mnthe/agentcore/internal/store"
)

// DefaultPollTimeout is used when a caller does not specify one.
const DefaultPollTimeout = 30 * time.Second

const pollRecheckInterval = 250 * time.Millisecond

// Mailbox is the per-team collection of recipient inboxes.
type Mailbox struct {
	Paths *paths.Resolver
	store *store.Store
}

// New constructs a Mailbox.
func New(p *paths.Resolver, s *store.Store) *Mailbox {
	return &Mailbox{Paths: p, store: s}
}

// inbox is the on-disk shape of one recipient's inbox file.
type inbox struct {
	Messages []model.Message `json:"messages"`
}

// SendRequest is the input to Send.
type SendRequest struct {
	From    string
	To      string
	Type    model.MessageType
	Payload any
}

// Send validates type, generates a fresh id and timestamp, and appends
// the message under a lock on the recipient's inbox file, creating it
// if absent.
func (mb *Mailbox) Send(project, team string, req SendRequest) (*model.Message, error) {
	if !model.ValidMessageType(req.Type) {
		return nil, fmt.Errorf("message type %q: %w", req.Type, kernelerr.ErrInvalidValue)
	}
	if req.To == "" {
		return nil, fmt.Errorf("recipient required: %w", kernelerr.ErrInvalidValue)
	}

	msg := model.Message{
		ID:        generateMessageID(),
		From:      req.From,
		To:        req.To,
		Type:      req.Type,
		Payload:   req.Payload,
		Timestamp: time.Now().UTC(),
	}

	var box inbox
	path := mb.Paths.InboxFile(project, team, req.To)
	err := mb.store.UpdateJSON(path, &box, func() error {
		box.Messages = append(box.Messages, msg)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// PollRequest is the input to Poll.
type PollRequest struct {
	TimeoutMs int
	Type      model.MessageType // optional filter; empty means any type
}

// Poll returns unread messages matching the optional type filter,
// marking them read under the recipient's lock. If none are available
// immediately, it rechecks periodically until either a match appears
// or the timeout elapses, then returns whatever (possibly empty) set it
// found. Concurrent pollers each observe a disjoint subset: a message
// is marked read (and thus removed from the next poller's view) in the
// same locked critical section that selects it.
func (mb *Mailbox) Poll(project, team, recipient string, req PollRequest) ([]model.Message, error) {
	timeout := time.Duration(req.TimeoutMs) * time.Millisecond
	if req.TimeoutMs <= 0 {
		timeout = DefaultPollTimeout
	}
	deadline := time.Now().Add(timeout)
	path := mb.Paths.InboxFile(project, team, recipient)

	for {
		var matched []model.Message
		var box inbox
		err := mb.store.UpdateJSON(path, &box, func() error {
			remaining := box.Messages[:0]
			for _, m := range box.Messages {
				if !m.Read && (req.Type == "" || m.Type == req.Type) {
					m.Read = true
					matched = append(matched, m)
				}
				remaining = append(remaining, m)
			}
			box.Messages = remaining
			return nil
		})
		if err != nil {
			return nil, err
		}
		if len(matched) > 0 {
			return matched, nil
		}
		if time.Now().After(deadline) {
			return []model.Message{}, nil
		}
		time.Sleep(pollRecheckInterval)
	}
}

var messageSeq atomic.Int64

// generateMessageID mints a unique id combining wall-clock nanoseconds
// with a process-local sequence counter, so messages sent in the same
// nanosecond (possible on coarse-grained clocks) still get distinct ids,
// even across concurrent Send calls in the same process.
func generateMessageID() string {
	seq := messageSeq.Add(1)
	return fmt.Sprintf("msg-%d-%d", time.Now().UnixNano(), seq)
}
