package http

import (
	"errors"
	"net/http"

	"monthbook/internal/core"
	"monthbook/internal/identity"
	applog "monthbook/internal/log"
)

func (s *Server) handleSubmitTransaction(w http.ResponseWriter, r *http.Request) {
	req, err := ParseSubmitRequest(w, r)
	if err != nil {
		if core.IsValidation(err) {
			s.writeError(w, r, err)
			return
		}
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Invalid submission body", "error", err)
		BadRequestError(err.Error()).Write(w)
		return
	}

	userID, err := s.identity.Resolve(r)
	switch {
	case err == nil:
		req.UserID = userID
	case s.trustBody && errors.Is(err, core.ErrUnauthenticated) && !errors.Is(err, identity.ErrInvalidToken) && req.UserID != "":
		// No request identity; the body's userId is the fallback.
	default:
		s.writeError(w, r, err)
		return
	}

	res, err := s.ledger.SubmitTransaction(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Body(newSubmitResponse(res)).
		Write(w)
}

func (s *Server) handleMonthlySummary(w http.ResponseWriter, r *http.Request) {
	userID, err := s.identity.Resolve(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	l, err := s.ledger.GetMonthlySummary(r.Context(), userID, r.URL.Query().Get("monthYear"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	NewJSONResponse().Body(newLedgerResponse(l)).Write(w)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.ledger.Categories(r.URL.Query().Get("type"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Header("Cache-Control", "public, max-age=3600").
		Body(categoriesResponse{Type: r.URL.Query().Get("type"), Categories: cats}).
		Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Ready(r.Context()); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", "error", err)
		ErrorResponse(http.StatusServiceUnavailable, "not ready").Write(w)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// writeError maps service errors onto HTTP responses. Unexpected errors are
// logged and reported without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *core.ValidationError
	var mismatch *core.IdentityMismatchError
	log := applog.FromContext(r.Context())

	switch {
	case errors.As(err, &ve):
		ValidationErrorResponse(ve).Write(w)
	case errors.Is(err, core.ErrUnauthenticated):
		ErrorResponse(http.StatusUnauthorized, "unauthenticated").Write(w)
	case errors.Is(err, core.ErrNotFound):
		ErrorResponse(http.StatusNotFound, "ledger not found").Write(w)
	case errors.Is(err, core.ErrConflict):
		ErrorResponse(http.StatusConflict, "ledger was modified concurrently, retry").Write(w)
	case core.IsStoreUnavailable(err):
		log.ErrorContext(r.Context(), "Ledger store unavailable", "error", err, "path", r.URL.Path)
		w.Header().Set("Retry-After", "5")
		ErrorResponse(http.StatusServiceUnavailable, "ledger store unavailable").Write(w)
	case errors.As(err, &mismatch):
		log.ErrorContext(r.Context(), "Ledger identity mismatch", "error", err, "path", r.URL.Path)
		InternalServerError("internal error").Write(w)
	default:
		log.ErrorContext(r.Context(), "Unhandled request error", "error", err, "path", r.URL.Path)
		InternalServerError("internal error").Write(w)
	}
}
