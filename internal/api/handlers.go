package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"teamhub-notifications/internal/common/auth"
	commonerrors "teamhub-notifications/internal/common/errors"
	"teamhub-notifications/internal/notifications"

	"github.com/gorilla/mux"
)

func (s *Server) getNotifications(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	params := r.URL.Query()

	limit, err := intParam(params.Get("limit"), "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	page, err := intParam(params.Get("page"), "page")
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.service.GetNotifications(r.Context(), notifications.Query{
		UserID:   claims.UserID,
		Role:     claims.Role,
		TeamID:   claims.TeamID,
		Limit:    limit,
		Page:     page,
		Category: params.Get("category"),
		Priority: params.Get("priority"),
		Search:   params.Get("search"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) markAsRead(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	id := mux.Vars(r)["id"]

	ok, err := s.service.MarkAsRead(r.Context(), id, claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "success": ok})
}

func (s *Server) createNotification(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.requireWriter(w, r)
	if !ok {
		return
	}

	var in notifications.NewNotification
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	in.CreatedBy = claims.UserID

	result, err := s.service.CreateNotification(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) createAdvancedNotification(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.requireWriter(w, r)
	if !ok {
		return
	}

	var in notifications.AdvancedNotification
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	in.CreatedBy = claims.UserID

	result, err := s.service.CreateAdvancedNotification(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) archiveNotification(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireWriter(w, r); !ok {
		return
	}
	id := mux.Vars(r)["id"]
	if err := s.service.ArchiveNotification(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "archived": true})
}

func (s *Server) deleteNotification(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireWriter(w, r); !ok {
		return
	}
	id := mux.Vars(r)["id"]
	if err := s.service.DeleteNotification(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "deleted": true})
}

func (s *Server) searchNotifications(w http.ResponseWriter, r *http.Request) {
	if s.searcher == nil {
		writeError(w, commonerrors.NewSearchIndexFailedError(errors.New("search is disabled")))
		return
	}
	claims := claimsFrom(r.Context())
	limit, err := intParam(r.URL.Query().Get("limit"), "limit")
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.searcher.Search(r.Context(), claims.TeamID, r.URL.Query().Get("q"), limit)
	if err != nil {
		s.logger.Warn("search failed", map[string]interface{}{"error": err})
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// requireWriter allows managers and admins through.
func (s *Server) requireWriter(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims := claimsFrom(r.Context())
	if !notifications.CanReviewRequests(claims.Role) {
		writeError(w, commonerrors.NewForbiddenError(fmt.Sprintf("role %q cannot manage notifications", claims.Role)))
		return nil, false
	}
	return claims, true
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", notifications.ErrInvalidInput, name)
	}
	return n, nil
}
