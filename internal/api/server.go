package api

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mattgrd/watchcrew/internal/auth"
	"github.com/mattgrd/watchcrew/internal/config"
	"github.com/mattgrd/watchcrew/internal/httputil"
	"github.com/mattgrd/watchcrew/internal/identity"
	"github.com/mattgrd/watchcrew/internal/lists"
)

type Server struct {
	config   *config.Config
	svc      *lists.Service
	dir      identity.Directory
	verifier *auth.Verifier
	authmw   *auth.Middleware
	wsHub    *WSHub
	router   *http.ServeMux

	limitersMu sync.Mutex
	limiters   map[string]*clientLimiter
}

func NewServer(cfg *config.Config, svc *lists.Service, dir identity.Directory, verifier *auth.Verifier, hub *WSHub) *Server {
	s := &Server{
		config:   cfg,
		svc:      svc,
		dir:      dir,
		verifier: verifier,
		authmw:   auth.NewMiddleware(verifier),
		wsHub:    hub,
		router:   http.NewServeMux(),
		limiters: make(map[string]*clientLimiter),
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /health", s.handleHealth)

	// Lists
	s.handle("POST /api/v1/lists", s.handleCreateList)
	s.handle("GET /api/v1/lists", s.handleMyLists)
	s.handle("GET /api/v1/lists/default", s.handleDefaultList)
	s.handle("GET /api/v1/lists/{id}", s.handleGetList)
	s.handle("PATCH /api/v1/lists/{id}", s.handleUpdateList)
	s.handle("DELETE /api/v1/lists/{id}", s.handleDeleteList)

	// Membership
	s.handle("GET /api/v1/lists/{id}/members", s.handleGetMembers)
	s.handle("DELETE /api/v1/lists/{id}/members/{userId}", s.handleRemoveCollaborator)
	s.handle("POST /api/v1/lists/{id}/leave", s.handleLeaveList)
	s.handle("POST /api/v1/lists/{id}/transfer", s.handleTransferOwnership)

	// Invitations
	s.handle("POST /api/v1/lists/{id}/invites", s.handleInviteUser)
	s.handle("POST /api/v1/lists/{id}/invite-links", s.handleCreateInviteLink)
	s.handle("GET /api/v1/lists/{id}/invites", s.handleListPendingInvites)
	s.handle("GET /api/v1/invites", s.handleIncomingInvites)
	s.handle("POST /api/v1/invites/{id}/accept", s.handleAcceptInvite)
	s.handle("POST /api/v1/invites/{id}/decline", s.handleDeclineInvite)
	s.handle("POST /api/v1/invites/{id}/revoke", s.handleRevokeInvite)
	s.handle("POST /api/v1/invite-links/redeem", s.rateLimited(s.handleRedeemInviteLink))

	// Items
	s.handle("POST /api/v1/items", s.handleAddMovieToLists)
	s.handle("GET /api/v1/lists/{id}/items", s.handleListItems)
	s.handle("DELETE /api/v1/lists/{id}/items/{tmdbId}", s.handleRemoveItem)
	s.handle("PUT /api/v1/lists/{id}/items/{tmdbId}/note", s.handleSetNote)

	// Invite-composition user search
	s.handle("GET /api/v1/users/search", s.handleSearchUsers)

	// Live list events
	s.router.HandleFunc("GET /api/v1/ws", s.handleWebSocket)
}

// handle registers an authenticated route.
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.router.Handle(pattern, s.authmw.RequireAuth(h))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ──────────────────── Rate limiting ────────────────────

// rateLimited guards code-redemption against brute-forcing invite codes:
// a small per-client budget with bursts.
func (s *Server) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !s.limiter(host).Allow() {
			httputil.WriteError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many attempts, slow down")
			return
		}
		next(w, r)
	}
}

const (
	limiterIdleAfter = 3 * time.Minute
	limiterSweepSize = 1024
)

type clientLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func (s *Server) limiter(key string) *rate.Limiter {
	s.limitersMu.Lock()
	defer s.limitersMu.Unlock()

	// Drop idle clients once the map gets big, so it cannot grow without
	// bound over the process lifetime.
	if len(s.limiters) >= limiterSweepSize {
		cutoff := time.Now().Add(-limiterIdleAfter)
		for k, cl := range s.limiters {
			if cl.lastSeen.Before(cutoff) {
				delete(s.limiters, k)
			}
		}
	}

	cl, ok := s.limiters[key]
	if !ok {
		cl = &clientLimiter{lim: rate.NewLimiter(rate.Limit(1), 5)}
		s.limiters[key] = cl
	}
	cl.lastSeen = time.Now()
	return cl.lim
}

// ──────────────────── Error mapping ────────────────────

// writeServiceError maps engine error kinds onto HTTP statuses. Everything in
// the taxonomy is an expected outcome; anything else is a transient failure.
func writeServiceError(w http.ResponseWriter, err error) {
	var e *lists.Error
	if !errors.As(err, &e) {
		httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL", "transient failure, try again")
		return
	}

	status := http.StatusConflict
	switch e {
	case lists.ErrListNotFound, lists.ErrInviteNotFound:
		status = http.StatusNotFound
	case lists.ErrNotAMember, lists.ErrNotOwner, lists.ErrNotInvitee:
		status = http.StatusForbidden
	case lists.ErrStorageConflict:
		status = http.StatusServiceUnavailable
	}
	httputil.WriteError(w, status, e.Code, e.Message)
}
