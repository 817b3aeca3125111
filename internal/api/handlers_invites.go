package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/mattgrd/watchcrew/internal/httputil"
)

// ──────────────────── Creating invites ────────────────────

func (s *Server) handleInviteUser(w http.ResponseWriter, r *http.Request) {
	listID, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid list id")
		return
	}
	var req struct {
		InviteeID uuid.UUID `json:"invitee_id"`
	}
	if err := httputil.ReadJSON(w, r, &req); err != nil || req.InviteeID == uuid.Nil {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invitee_id is required")
		return
	}
	if req.InviteeID == caller(r) {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "cannot invite yourself")
		return
	}
	inv, err := s.svc.InviteUser(r.Context(), caller(r), listID, req.InviteeID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, inv)
}

func (s *Server) handleCreateInviteLink(w http.ResponseWriter, r *http.Request) {
	listID, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid list id")
		return
	}
	inv, err := s.svc.CreateInviteLink(r.Context(), caller(r), listID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, inv)
}

// ──────────────────── Consuming invites ────────────────────

func (s *Server) handleAcceptInvite(w http.ResponseWriter, r *http.Request) {
	inviteID, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid invite id")
		return
	}
	if err := s.svc.AcceptInvite(r.Context(), caller(r), inviteID); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"accepted": true})
}

func (s *Server) handleDeclineInvite(w http.ResponseWriter, r *http.Request) {
	inviteID, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid invite id")
		return
	}
	if err := s.svc.DeclineInvite(r.Context(), caller(r), inviteID); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"declined": true})
}

func (s *Server) handleRevokeInvite(w http.ResponseWriter, r *http.Request) {
	inviteID, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid invite id")
		return
	}
	if err := s.svc.RevokeInvite(r.Context(), caller(r), inviteID); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"revoked": true})
}

func (s *Server) handleRedeemInviteLink(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := httputil.ReadJSON(w, r, &req); err != nil || req.Code == "" {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required")
		return
	}
	list, err := s.svc.RedeemInviteLink(r.Context(), caller(r), req.Code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

// ──────────────────── Listing invites ────────────────────

func (s *Server) handleListPendingInvites(w http.ResponseWriter, r *http.Request) {
	listID, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid list id")
		return
	}
	invites, err := s.svc.ListPendingInvites(r.Context(), caller(r), listID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, invites)
}

func (s *Server) handleIncomingInvites(w http.ResponseWriter, r *http.Request) {
	invites, err := s.svc.IncomingInvites(r.Context(), caller(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, invites)
}

// ──────────────────── User search ────────────────────

// handleSearchUsers powers the invite composer. The directory call is a plain
// pass-through; the caller is always excluded from their own results.
func (s *Server) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("q")
	if prefix == "" {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "q is required")
		return
	}
	profiles, err := s.dir.SearchUsers(r.Context(), prefix, caller(r).String())
	if err != nil {
		httputil.WriteError(w, http.StatusBadGateway, "IDENTITY_UNAVAILABLE", "user search is temporarily unavailable")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profiles)
}
