// Package session runs the onboarding form: login, selfie upload and
// submission, one explicit Session value per user.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/checkinecuador/checkin/internal/submit"
	"github.com/checkinecuador/checkin/internal/upload"
)

// Login methods.
const (
	MethodKey      = "key"
	MethodKeychain = "keychain"
)

// Session is one user's form state. The zero value is not usable; create
// sessions with New.
type Session struct {
	ID string

	mu         sync.Mutex
	handle     string
	method     string
	image      *upload.Result
	last       *submit.Result
	loggingIn  bool
	uploading  bool
	submitting bool
	touched    time.Time

	// gen changes on logout; work started under an older gen is discarded.
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc

	strategies map[submit.Kind]submit.Strategy
	verifier   LoginVerifier
}

// Option customizes a Session.
type Option func(*Session)

// WithStrategy makes s handle its kind for this session only, ahead of
// the controller's strategies.
func WithStrategy(s submit.Strategy) Option {
	return func(sess *Session) {
		sess.strategies[s.Kind()] = s
	}
}

// WithVerifier sets the Keychain login verifier for this session only.
func WithVerifier(v LoginVerifier) Option {
	return func(sess *Session) {
		sess.verifier = v
	}
}

// New creates an anonymous session.
func New(id string, opts ...Option) *Session {
	s := &Session{
		ID:         id,
		strategies: make(map[submit.Kind]submit.Strategy),
		touched:    time.Now(),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State is a snapshot of a session for display.
type State struct {
	LoggedIn      bool           `json:"loggedIn"`
	Handle        string         `json:"handle,omitempty"`
	Method        string         `json:"method,omitempty"`
	ImageURL      string         `json:"imageUrl,omitempty"`
	ImageEmbedded bool           `json:"imageEmbedded,omitempty"`
	Uploading     bool           `json:"uploading"`
	Submitting    bool           `json:"submitting"`
	Last          *submit.Result `json:"-"`
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		LoggedIn:   s.handle != "",
		Handle:     s.handle,
		Method:     s.method,
		Uploading:  s.uploading,
		Submitting: s.submitting,
		Last:       s.last,
	}
	if s.image != nil {
		st.ImageURL = s.image.URL
		st.ImageEmbedded = s.image.Embedded
	}
	return st
}

// Handle returns the logged-in handle, or "".
func (s *Session) Handle() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// LastResult returns the outcome of the last successful submission.
func (s *Session) LastResult() *submit.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Touched returns when the session was last used.
func (s *Session) Touched() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

// Close cancels anything still running for the session.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel()
}

func (s *Session) touch() {
	s.touched = time.Now()
}

// begin marks an action in flight. It returns false if one already is.
func (s *Session) begin(flag *bool) (gen uint64, ctx context.Context, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if *flag {
		return 0, nil, false
	}
	*flag = true
	s.touch()
	return s.gen, s.ctx, true
}

func (s *Session) end(flag *bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	*flag = false
}

func (s *Session) logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.gen++
	s.handle = ""
	s.method = ""
	s.image = nil
	s.last = nil
	s.touch()
}

// bind returns a context cancelled when either ctx or sessionCtx is done.
func bind(ctx, sessionCtx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(sessionCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
