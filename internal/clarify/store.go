package clarify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNoPendingHelp is returned when a user_help_response arrives but no
// AWAITING_HELP wait is active (spec §8 boundary behavior).
var ErrNoPendingHelp = errors.New("no pending help request")

// Store holds at most one pending help request at a time, mirroring the
// Task Manager's single AWAITING_HELP slot (spec §4.3: "Only one slot
// exists per AWAITING_HELP entry").
type Store struct {
	mu      sync.Mutex
	pending *pendingWait
	timeout time.Duration
}

// NewStore creates a help-wait store with the given resolve-without-guidance
// timeout (spec default: 5 minutes).
func NewStore(timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Store{timeout: timeout}
}

// Open creates the single pending wait and returns its ID. Any previously
// open wait is discarded; the Task Manager never opens a second wait while
// one is outstanding.
func (s *Store) Open(req *Request) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.PendingID == "" {
		req.PendingID = uuid.New().String()
	}
	req.CreatedAt = time.Now()

	s.pending = &pendingWait{
		request:    req,
		responseCh: make(chan *Response, 1),
		createdAt:  req.CreatedAt,
	}
	return req.PendingID
}

// Wait blocks until guidance is submitted via Respond, the timeout elapses
// (in which case it resolves to a TimedOut response per spec §4.3/§7 item 6),
// or ctx is cancelled.
func (s *Store) Wait(ctx context.Context, pendingID string) (*Response, error) {
	s.mu.Lock()
	pending := s.pending
	s.mu.Unlock()

	if pending == nil || pending.request.PendingID != pendingID {
		return nil, fmt.Errorf("help wait not found: %s", pendingID)
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case resp := <-pending.responseCh:
		s.clear(pendingID)
		return resp, nil
	case <-timer.C:
		resp := &Response{PendingID: pendingID, TimedOut: true, RespondedAt: time.Now()}
		s.clear(pendingID)
		return resp, nil
	case <-ctx.Done():
		s.clear(pendingID)
		return nil, ctx.Err()
	}
}

// Respond delivers guidance to the single pending wait. Returns
// ErrNoPendingHelp if there is no wait open (spec §8 boundary behavior).
func (s *Store) Respond(guidance string) error {
	s.mu.Lock()
	pending := s.pending
	s.mu.Unlock()

	if pending == nil {
		return ErrNoPendingHelp
	}

	resp := &Response{
		PendingID:   pending.request.PendingID,
		Guidance:    guidance,
		RespondedAt: time.Now(),
	}

	select {
	case pending.responseCh <- resp:
		return nil
	default:
		return fmt.Errorf("response already submitted for: %s", pending.request.PendingID)
	}
}

// HasPending reports whether a help wait is currently open.
func (s *Store) HasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

func (s *Store) clear(pendingID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil && s.pending.request.PendingID == pendingID {
		s.pending = nil
	}
}
