package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/folio-writing/folio/internal/chat"
	"github.com/folio-writing/folio/internal/rating"
	"github.com/folio-writing/folio/pkg/models"
)

// TitlesFailedMessage is returned when titles cannot be listed.
const TitlesFailedMessage = "Failed to fetch titles"

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := s.decode(w, r, &req); err != nil {
		s.logger.DebugContext(r.Context(), "invalid chat body", "error", err)
		// An unreadable body is an empty message; Reply still reports a
		// missing API key first.
		req = models.ChatRequest{}
	}

	if s.chat == nil {
		writeError(w, http.StatusInternalServerError, chat.NoAPIKeyMessage)
		return
	}

	resp, err := s.chat.Reply(r.Context(), req)
	if err != nil {
		var replyErr *chat.ReplyError
		if errors.As(err, &replyErr) {
			if replyErr.Status >= http.StatusInternalServerError {
				s.logger.ErrorContext(r.Context(), "chat failed", "status", replyErr.Status, "error", err)
			}
			writeError(w, replyErr.Status, replyErr.Message)
			return
		}
		s.logger.ErrorContext(r.Context(), "chat failed", "error", err)
		writeError(w, http.StatusInternalServerError, chat.GenericMessage)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	var req models.RateRequest
	if err := s.decode(w, r, &req); err != nil {
		s.logger.DebugContext(r.Context(), "invalid rate body", "error", err)
		req = models.RateRequest{}
	}

	if s.rater == nil {
		writeError(w, http.StatusInternalServerError, rating.MsgNotConfigured)
		return
	}

	resp, err := s.rater.Rate(r.Context(), req.Description)
	if err != nil {
		status, message := rateFailure(err)
		if status >= http.StatusInternalServerError {
			s.logger.ErrorContext(r.Context(), "rate failed", "error", err)
		}
		writeError(w, status, message)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func rateFailure(err error) (int, string) {
	var validation *rating.ValidationError
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, validation.Message
	case errors.Is(err, rating.ErrNotConfigured):
		return http.StatusInternalServerError, rating.MsgNotConfigured
	case errors.Is(err, rating.ErrUnexpectedDimension):
		return http.StatusInternalServerError, rating.MsgUnexpectedDimension
	case errors.Is(err, rating.ErrHeadUnavailable):
		return http.StatusInternalServerError, rating.MsgHeadUnavailable
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func (s *Server) handleTitles(w http.ResponseWriter, r *http.Request) {
	if s.titles == nil {
		writeError(w, http.StatusInternalServerError, TitlesFailedMessage)
		return
	}
	titles, err := s.titles.ListTitles(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "list titles failed", "error", err)
		writeError(w, http.StatusInternalServerError, TitlesFailedMessage)
		return
	}
	if titles == nil {
		titles = []string{}
	}
	writeJSON(w, http.StatusOK, models.TitlesResponse{Titles: titles})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The client may have gone away.
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Error: message})
}
