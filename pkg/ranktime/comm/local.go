package comm

import (
	"context"
	"fmt"
	"sync"
)

// LocalGroup is an in-process Comm implementation. Each rank runs as a
// goroutine; messages move through per-rank mailboxes with FIFO order
// per sender. It backs the tests and single-machine SPMD runs.
type LocalGroup struct {
	size      int
	mailboxes []*mailbox
}

// NewLocalGroup creates a group of the given size and returns one Comm
// per rank, indexed by rank id.
func NewLocalGroup(size int) ([]Comm, error) {
	if size <= 0 {
		return nil, fmt.Errorf("group size must be positive, got %d", size)
	}
	g := &LocalGroup{
		size:      size,
		mailboxes: make([]*mailbox, size),
	}
	for i := range g.mailboxes {
		g.mailboxes[i] = newMailbox()
	}
	comms := make([]Comm, size)
	for i := range comms {
		comms[i] = &localComm{rank: i, group: g}
	}
	return comms, nil
}

type localComm struct {
	rank  int
	group *LocalGroup
}

func (c *localComm) Rank() int { return c.rank }
func (c *localComm) Size() int { return c.group.size }

func (c *localComm) Isend(_ context.Context, dest, tag int, payload []byte) (*Request, error) {
	if dest < 0 || dest >= c.group.size {
		return nil, fmt.Errorf("isend: rank %d out of range [0,%d)", dest, c.group.size)
	}
	req := newRequest()
	c.group.mailboxes[dest].put(&message{
		source:  c.rank,
		tag:     tag,
		payload: payload,
		req:     req,
	})
	return req, nil
}

func (c *localComm) Recv(ctx context.Context, source, tag int) ([]byte, error) {
	msg, err := c.group.mailboxes[c.rank].take(ctx, source, tag)
	if err != nil {
		return nil, err
	}
	msg.req.complete()
	return msg.payload, nil
}

func (c *localComm) Probe(ctx context.Context, source, tag int) (int, error) {
	return c.group.mailboxes[c.rank].peek(ctx, source, tag)
}

func (c *localComm) WaitAll(ctx context.Context, reqs []*Request) error {
	for _, req := range reqs {
		select {
		case <-req.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

type message struct {
	source  int
	tag     int
	payload []byte
	req     *Request
}

// mailbox holds pending messages for one rank. Matching scans in
// arrival order, which preserves FIFO per (sender, tag filter).
type mailbox struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []*message
}

func newMailbox() *mailbox {
	m := &mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *mailbox) put(msg *message) {
	m.mu.Lock()
	m.pending = append(m.pending, msg)
	m.mu.Unlock()
	m.cond.Broadcast()
}

func (m *mailbox) match(source, tag int) int {
	for i, msg := range m.pending {
		if msg.source != source {
			continue
		}
		if tag == AnyTag || msg.tag == tag {
			return i
		}
	}
	return -1
}

// take removes and returns the first matching message, blocking until
// one arrives or ctx is cancelled.
func (m *mailbox) take(ctx context.Context, source, tag int) (*message, error) {
	stop := context.AfterFunc(ctx, func() { m.cond.Broadcast() })
	defer stop()

	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		if i := m.match(source, tag); i >= 0 {
			msg := m.pending[i]
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return msg, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m.cond.Wait()
	}
}

// peek blocks like take but leaves the message pending and returns only
// its payload size.
func (m *mailbox) peek(ctx context.Context, source, tag int) (int, error) {
	stop := context.AfterFunc(ctx, func() { m.cond.Broadcast() })
	defer stop()

	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		if i := m.match(source, tag); i >= 0 {
			return len(m.pending[i].payload), nil
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		m.cond.Wait()
	}
}
