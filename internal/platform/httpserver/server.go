package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	votingbooth "ballotbooth/contexts/election/voting-booth"
	boothdomainerrors "ballotbooth/contexts/election/voting-booth/domain/errors"
	boothhttp "ballotbooth/contexts/election/voting-booth/transport/http"
	_ "ballotbooth/internal/platform/httpserver/docs"

	httpSwagger "github.com/swaggo/http-swagger"
)

const (
	maxJSONBodyBytes  = 1 << 20
	maxFrameBodyBytes = 16 << 20
	shutdownTimeout   = 10 * time.Second
)

type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
	addr   string
	booth  votingbooth.Module
}

func New(booth votingbooth.Module, logger *slog.Logger, addr string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:    http.NewServeMux(),
		logger: logger,
		addr:   addr,
		booth:  booth,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("http server stopping",
		"event", "http_server_stopping",
		"module", "internal/platform/httpserver",
		"layer", "platform",
	)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("POST /api/booth/v1/sessions", s.handleBeginSession)
	s.mux.HandleFunc("POST /api/booth/v1/sessions/{session_id}/qr", s.handleSubmitQR)
	s.mux.HandleFunc("POST /api/booth/v1/sessions/{session_id}/fingerprint", s.handleSubmitFingerprint)
	s.mux.HandleFunc("POST /api/booth/v1/sessions/{session_id}/face", s.handleSubmitFace)
	s.mux.HandleFunc("POST /api/booth/v1/sessions/{session_id}/vote", s.handleCastVote)
	s.mux.HandleFunc("DELETE /api/booth/v1/sessions/{session_id}", s.handleAbandonSession)
	s.mux.HandleFunc("GET /api/booth/v1/voters/{voter_id}/status", s.handleVoterStatus)
	s.mux.HandleFunc("GET /api/booth/v1/candidates", s.handleCandidates)
	s.mux.HandleFunc("GET /api/booth/v1/results", s.handleResults)

	s.mux.HandleFunc("GET /api/admin/v1/voters", s.requireAdmin(s.handleListVoters))
	s.mux.HandleFunc("POST /api/admin/v1/voters", s.requireAdmin(s.handleEnrollVoter))
	s.mux.HandleFunc("PUT /api/admin/v1/voters/{voter_id}", s.requireAdmin(s.handleUpdateVoter))
	s.mux.HandleFunc("DELETE /api/admin/v1/voters/{voter_id}", s.requireAdmin(s.handleDeleteVoter))
	s.mux.HandleFunc("POST /api/admin/v1/voters/{voter_id}/reset-vote", s.requireAdmin(s.handleResetVoterVote))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBeginSession(w http.ResponseWriter, r *http.Request) {
	resp, err := s.booth.Handler.BeginSessionHandler(r.Context())
	if err != nil {
		s.writeBoothDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleSubmitQR(w http.ResponseWriter, r *http.Request) {
	var req boothhttp.SubmitQRRequest
	if !decodeJSON(w, r, maxJSONBodyBytes, &req) {
		return
	}
	resp, err := s.booth.Handler.SubmitQRHandler(r.Context(), r.PathValue("session_id"), req)
	if err != nil {
		s.writeBoothDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubmitFingerprint(w http.ResponseWriter, r *http.Request) {
	var req boothhttp.SubmitFingerprintRequest
	if !decodeJSON(w, r, maxJSONBodyBytes, &req) {
		return
	}
	resp, err := s.booth.Handler.SubmitFingerprintHandler(r.Context(), r.PathValue("session_id"), req)
	if err != nil {
		s.writeBoothDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubmitFace(w http.ResponseWriter, r *http.Request) {
	var req boothhttp.SubmitFaceRequest
	if !decodeJSON(w, r, maxFrameBodyBytes, &req) {
		return
	}
	resp, err := s.booth.Handler.SubmitFaceHandler(r.Context(), r.PathValue("session_id"), req)
	if err != nil {
		s.writeBoothDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	var req boothhttp.CastVoteRequest
	if !decodeJSON(w, r, maxJSONBodyBytes, &req) {
		return
	}
	resp, err := s.booth.Handler.CastVoteHandler(r.Context(), r.PathValue("session_id"), req)
	if err != nil {
		s.writeBoothDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleAbandonSession(w http.ResponseWriter, r *http.Request) {
	if err := s.booth.Handler.AbandonSessionHandler(r.Context(), r.PathValue("session_id")); err != nil {
		s.writeBoothDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleVoterStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.booth.Handler.VoterStatusHandler(r.Context(), r.PathValue("voter_id"))
	if err != nil {
		s.writeBoothDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.booth.Handler.CandidatesHandler(r.Context()))
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	resp, err := s.booth.Handler.ResultsHandler(r.Context())
	if err != nil {
		s.writeBoothDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type adminHandlerFunc func(w http.ResponseWriter, r *http.Request, adminID string)

// requireAdmin only demands an X-Admin-Id for attribution. Authentication is
// expected in front of this service.
func (s *Server) requireAdmin(next adminHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminID := strings.TrimSpace(r.Header.Get("X-Admin-Id"))
		if adminID == "" {
			writeBoothError(w, http.StatusUnauthorized, "missing_admin", "X-Admin-Id header is required")
			return
		}
		next(w, r, adminID)
	}
}

func (s *Server) handleListVoters(w http.ResponseWriter, r *http.Request, _ string) {
	resp, err := s.booth.Handler.ListVotersHandler(r.Context())
	if err != nil {
		s.writeBoothDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEnrollVoter(w http.ResponseWriter, r *http.Request, adminID string) {
	var req boothhttp.EnrollVoterRequest
	if !decodeJSON(w, r, maxFrameBodyBytes, &req) {
		return
	}
	resp, err := s.booth.Handler.EnrollVoterHandler(r.Context(), adminID, req)
	if err != nil {
		s.writeBoothDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleUpdateVoter(w http.ResponseWriter, r *http.Request, adminID string) {
	var req boothhttp.UpdateVoterRequest
	if !decodeJSON(w, r, maxFrameBodyBytes, &req) {
		return
	}
	resp, err := s.booth.Handler.UpdateVoterHandler(r.Context(), adminID, r.PathValue("voter_id"), req)
	if err != nil {
		s.writeBoothDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteVoter(w http.ResponseWriter, r *http.Request, adminID string) {
	if err := s.booth.Handler.DeleteVoterHandler(r.Context(), adminID, r.PathValue("voter_id")); err != nil {
		s.writeBoothDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetVoterVote(w http.ResponseWriter, r *http.Request, adminID string) {
	resp, err := s.booth.Handler.ResetVoterVoteHandler(r.Context(), adminID, r.PathValue("voter_id"))
	if err != nil {
		s.writeBoothDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeBoothDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := boothErrorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("booth request failed",
			"event", "http_booth_request_failed",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err.Error(),
		)
	}
	switch code {
	case "store_failure":
		writeBoothError(w, status, code, "vote outcome unknown, check voter status before retrying")
	case "internal_error":
		writeBoothError(w, status, code, "internal server error")
	default:
		writeBoothError(w, status, code, err.Error())
	}
}

func boothErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, boothdomainerrors.ErrNotRegistered):
		return http.StatusNotFound, "not_registered"
	case errors.Is(err, boothdomainerrors.ErrVoterNotFound):
		return http.StatusNotFound, "voter_not_found"
	case errors.Is(err, boothdomainerrors.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, boothdomainerrors.ErrSessionExpired):
		return http.StatusGone, "session_expired"
	case errors.Is(err, boothdomainerrors.ErrUnderage):
		return http.StatusForbidden, "underage"
	case errors.Is(err, boothdomainerrors.ErrSessionNotVerified):
		return http.StatusForbidden, "session_not_verified"
	case errors.Is(err, boothdomainerrors.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, boothdomainerrors.ErrAlreadyVoted):
		return http.StatusConflict, "already_voted"
	case errors.Is(err, boothdomainerrors.ErrVoterExists):
		return http.StatusConflict, "voter_exists"
	case errors.Is(err, boothdomainerrors.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, boothdomainerrors.ErrFingerprintMismatch):
		return http.StatusUnauthorized, "fingerprint_mismatch"
	case errors.Is(err, boothdomainerrors.ErrFaceMismatch):
		return http.StatusUnauthorized, "face_mismatch"
	case errors.Is(err, boothdomainerrors.ErrNoEnrolledFace):
		return http.StatusUnprocessableEntity, "no_enrolled_face"
	case errors.Is(err, boothdomainerrors.ErrNoFaceDetected):
		return http.StatusUnprocessableEntity, "no_face_detected"
	case errors.Is(err, boothdomainerrors.ErrMalformedTemplate):
		return http.StatusUnprocessableEntity, "malformed_template"
	case errors.Is(err, boothdomainerrors.ErrInvalidCandidate):
		return http.StatusBadRequest, "invalid_candidate"
	case errors.Is(err, boothdomainerrors.ErrInvalidVoterInput):
		return http.StatusBadRequest, "invalid_voter_input"
	case errors.Is(err, boothdomainerrors.ErrStoreFailure):
		return http.StatusServiceUnavailable, "store_failure"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, target any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeBoothError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body is too large")
			return false
		}
		writeBoothError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return false
	}
	return true
}

func writeBoothError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, boothhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
