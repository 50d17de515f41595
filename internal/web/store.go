package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/checkinecuador/checkin/internal/keychain"
	"github.com/checkinecuador/checkin/internal/metrics"
	"github.com/checkinecuador/checkin/internal/session"
	"github.com/checkinecuador/checkin/internal/submit"
	"github.com/google/uuid"
)

// CookieName holds the session id.
const CookieName = "checkin_session"

// DefaultSessionTTL is how long an idle session is kept.
const DefaultSessionTTL = 2 * time.Hour

// client is everything the server keeps for one browser.
type client struct {
	session *session.Session
	bridge  *keychain.Bridge
	exports *submit.MemoryDeliverer
}

type store struct {
	mu      sync.Mutex
	clients map[string]*client
	ttl     time.Duration
	build   func(id string) *client
}

func newStore(ttl time.Duration, build func(id string) *client) *store {
	if ttl == 0 {
		ttl = DefaultSessionTTL
	}
	return &store{
		clients: make(map[string]*client),
		ttl:     ttl,
		build:   build,
	}
}

// lookup returns the client named by the request cookie. It never
// creates one.
func (s *store) lookup(r *http.Request) (*client, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cl, ok := s.clients[c.Value]
	return cl, ok
}

// get returns the client named by the request cookie, creating one (and
// setting the cookie) when there is none. Only the form page and login
// call it.
func (s *store) get(w http.ResponseWriter, r *http.Request) *client {
	if cl, ok := s.lookup(r); ok {
		return cl
	}

	id := uuid.NewString()
	cl := s.build(id)

	s.mu.Lock()
	s.clients[id] = cl
	n := len(s.clients)
	s.mu.Unlock()
	metrics.SetActiveSessions(n)

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return cl
}

// sweep drops sessions idle for longer than the TTL.
func (s *store) sweep(now time.Time) int {
	s.mu.Lock()
	var dropped []*client
	for id, cl := range s.clients {
		if now.Sub(cl.session.Touched()) > s.ttl {
			dropped = append(dropped, cl)
			delete(s.clients, id)
		}
	}
	n := len(s.clients)
	s.mu.Unlock()

	for _, cl := range dropped {
		cl.session.Close()
	}
	metrics.SetActiveSessions(n)
	return len(dropped)
}

func (s *store) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
