package cytube

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTimeout means no correlated reply arrived within the deadline.
	ErrTimeout = errors.New("request timed out")
	// ErrSuperseded means a newer request of the same kind replaced this one.
	ErrSuperseded = errors.New("request superseded")
	// ErrClosed means the session was torn down with the request in flight.
	ErrClosed = errors.New("session closed")
)

type requestKind int

const (
	kindJoin requestKind = iota
	kindLogin
	kindQueue
)

type requestResult struct {
	name  string
	guest bool
	err   error
}

// pendingRequest correlates one outbound command to exactly one future
// inbound reply. The channel is buffered so whichever of reply, timeout
// or teardown arrives first wins and the rest are ignored.
type pendingRequest struct {
	kind requestKind
	// correlationID matches replies that embed an id (queue submissions);
	// empty means the next reply of the kind resolves this request.
	correlationID string
	sid           string
	done          chan requestResult
}

// pendingSet holds at most one outstanding request per kind. Creating a
// new request of a kind resolves the previous one with ErrSuperseded.
type pendingSet struct {
	// Guarded by Client.mu; pendingSet has no lock of its own.
	reqs map[requestKind]*pendingRequest
}

func newPendingSet() *pendingSet {
	return &pendingSet{reqs: make(map[requestKind]*pendingRequest)}
}

func (p *pendingSet) create(kind requestKind, correlationID, sid string) *pendingRequest {
	if prev, ok := p.reqs[kind]; ok {
		prev.complete(requestResult{err: ErrSuperseded})
	}
	req := &pendingRequest{
		kind:          kind,
		correlationID: correlationID,
		sid:           sid,
		done:          make(chan requestResult, 1),
	}
	p.reqs[kind] = req
	return req
}

// resolve completes the outstanding request of the kind, if any. A
// non-empty reply id that does not match the outstanding correlation id
// is someone else's reply and is left alone.
func (p *pendingSet) resolve(kind requestKind, replyID string, res requestResult) {
	req, ok := p.reqs[kind]
	if !ok {
		return
	}
	if req.correlationID != "" && replyID != req.correlationID {
		return
	}
	delete(p.reqs, kind)
	req.complete(res)
}

func (p *pendingSet) drop(req *pendingRequest) {
	if current, ok := p.reqs[req.kind]; ok && current == req {
		delete(p.reqs, req.kind)
	}
}

// failAll resolves every outstanding request with err. Called on
// session teardown so no caller is left hanging.
func (p *pendingSet) failAll(err error) {
	for kind, req := range p.reqs {
		delete(p.reqs, kind)
		req.complete(requestResult{err: err})
	}
}

func (r *pendingRequest) complete(res requestResult) {
	select {
	case r.done <- res:
	default:
	}
}

// await blocks for the request's single resolution, racing the reply
// against the timeout and the caller's context.
func (c *Client) await(ctx context.Context, req *pendingRequest) (requestResult, error) {
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case res := <-req.done:
		return res, res.err
	case <-timer.C:
		c.mu.Lock()
		c.pending.drop(req)
		c.mu.Unlock()
		return requestResult{}, ErrTimeout
	case <-ctx.Done():
		c.mu.Lock()
		c.pending.drop(req)
		c.mu.Unlock()
		return requestResult{}, ctx.Err()
	}
}
