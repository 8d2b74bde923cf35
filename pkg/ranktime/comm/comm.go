// Package comm provides the message-passing transport used to gather
// event data across a fixed-size process group.
//
// The Comm interface exposes the point-to-point primitives the collect
// protocol needs: non-blocking send, blocking receive with wildcard tag
// matching, a probe that reports the exact byte size of a pending
// message, and a wait over outstanding send handles. Collective
// operations (reductions, gather) are built on top of these primitives
// and work with any Comm implementation.
//
// Delivery between any (sender, receiver) pair is FIFO. A send handle
// completes when the matching receive has consumed the message.
package comm

import "context"

// AnyTag matches any message tag in Recv and Probe.
const AnyTag = -1

// reservedTagBase marks the start of the tag range used internally by
// the collective operations. Application traffic must stay below it.
const reservedTagBase = 1 << 24

// Request is a handle for an outstanding non-blocking send. It is
// completed by the transport once the matching receive has consumed the
// message.
type Request struct {
	done chan struct{}
}

func newRequest() *Request {
	return &Request{done: make(chan struct{})}
}

func (r *Request) complete() {
	close(r.done)
}

// Done returns a channel that is closed once the send has been consumed.
func (r *Request) Done() <-chan struct{} {
	return r.done
}

// Comm is one member's view of a fixed-size process group.
//
// Implementations must deliver messages between any pair of ranks in
// send order. Recv and Probe block until a matching message is pending;
// both honor context cancellation.
type Comm interface {
	// Rank returns this member's id, in [0, Size).
	Rank() int

	// Size returns the fixed number of group members.
	Size() int

	// Isend enqueues payload for dest without blocking and returns a
	// handle that completes when the message has been received.
	Isend(ctx context.Context, dest, tag int, payload []byte) (*Request, error)

	// Recv blocks until a message from source with a matching tag is
	// pending and returns its payload. Pass AnyTag to match any tag.
	Recv(ctx context.Context, source, tag int) ([]byte, error)

	// Probe blocks like Recv but returns the pending message's exact
	// byte size without consuming it.
	Probe(ctx context.Context, source, tag int) (int, error)

	// WaitAll blocks until every request has completed.
	WaitAll(ctx context.Context, reqs []*Request) error
}
