package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/mattgrd/watchcrew/internal/auth"
	"github.com/mattgrd/watchcrew/internal/httputil"
	"github.com/mattgrd/watchcrew/internal/models"
)

// caller returns the authenticated user id; RequireAuth guarantees presence.
func caller(r *http.Request) uuid.UUID {
	return auth.UserFromContext(r.Context()).UserID
}

func pathUUID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	return id, err == nil
}

// ──────────────────── List lifecycle ────────────────────

func (s *Server) handleCreateList(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		IsPublic bool   `json:"is_public"`
	}
	if err := httputil.ReadJSON(w, r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if req.Name == "" {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "name is required")
		return
	}
	list, err := s.svc.CreateList(r.Context(), caller(r), req.Name, req.IsPublic)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, list)
}

func (s *Server) handleMyLists(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.ListsForUser(r.Context(), caller(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) handleDefaultList(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.EnsureDefaultList(r.Context(), caller(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetList(w http.ResponseWriter, r *http.Request) {
	listID, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid list id")
		return
	}
	list, err := s.svc.GetList(r.Context(), caller(r), listID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (s *Server) handleUpdateList(w http.ResponseWriter, r *http.Request) {
	listID, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid list id")
		return
	}
	var upd models.ListUpdate
	if err := httputil.ReadJSON(w, r, &upd); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	list, err := s.svc.UpdateList(r.Context(), caller(r), listID, upd)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (s *Server) handleDeleteList(w http.ResponseWriter, r *http.Request) {
	listID, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid list id")
		return
	}
	if err := s.svc.DeleteList(r.Context(), caller(r), listID); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// ──────────────────── Membership ────────────────────

func (s *Server) handleGetMembers(w http.ResponseWriter, r *http.Request) {
	listID, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid list id")
		return
	}
	members, err := s.svc.GetMembers(r.Context(), caller(r), listID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, members)
}

func (s *Server) handleRemoveCollaborator(w http.ResponseWriter, r *http.Request) {
	listID, ok := pathUUID(r, "id")
	userID, ok2 := pathUUID(r, "userId")
	if !ok || !ok2 {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid id")
		return
	}
	if err := s.svc.RemoveCollaborator(r.Context(), caller(r), listID, userID); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"removed": true})
}

func (s *Server) handleLeaveList(w http.ResponseWriter, r *http.Request) {
	listID, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid list id")
		return
	}
	if err := s.svc.LeaveList(r.Context(), caller(r), listID); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"left": true})
}

func (s *Server) handleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	listID, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid list id")
		return
	}
	var req struct {
		NewOwnerID uuid.UUID `json:"new_owner_id"`
	}
	if err := httputil.ReadJSON(w, r, &req); err != nil || req.NewOwnerID == uuid.Nil {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "new_owner_id is required")
		return
	}
	if err := s.svc.TransferOwnership(r.Context(), caller(r), listID, req.NewOwnerID); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"transferred": true})
}

// ──────────────────── Items ────────────────────

func (s *Server) handleAddMovieToLists(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Movie      models.Movie           `json:"movie"`
		Selections []models.ListSelection `json:"selections"`
	}
	if err := httputil.ReadJSON(w, r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if req.Movie.TMDBID == 0 || len(req.Selections) == 0 {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "movie and selections are required")
		return
	}
	res, err := s.svc.AddMovieToLists(r.Context(), caller(r), req.Movie, req.Selections)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	listID, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid list id")
		return
	}
	items, err := s.svc.Items(r.Context(), caller(r), listID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, items)
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	listID, ok := pathUUID(r, "id")
	tmdbID, err := strconv.ParseInt(r.PathValue("tmdbId"), 10, 64)
	if !ok || err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid id")
		return
	}
	if err := s.svc.RemoveItem(r.Context(), caller(r), listID, tmdbID); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"removed": true})
}

func (s *Server) handleSetNote(w http.ResponseWriter, r *http.Request) {
	listID, ok := pathUUID(r, "id")
	tmdbID, err := strconv.ParseInt(r.PathValue("tmdbId"), 10, 64)
	if !ok || err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid id")
		return
	}
	var req struct {
		Note string `json:"note"`
	}
	if err := httputil.ReadJSON(w, r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if err := s.svc.SetNote(r.Context(), caller(r), listID, tmdbID, req.Note); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"saved": true})
}
