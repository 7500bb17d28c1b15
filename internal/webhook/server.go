// Package webhook serves the HTTP trigger and inspection endpoints.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/user/scriptdesk/internal/headline"
	"github.com/user/scriptdesk/internal/state"
	"github.com/user/scriptdesk/internal/types"
)

// SubmitFunc enqueues a synthetic inbound event and returns its run ID.
type SubmitFunc func(ctx context.Context, ev *types.InboundEvent) (types.RunID, error)

// JournalReader reads recent dispatch outcomes.
type JournalReader interface {
	Tail(ctx context.Context, channel types.ChannelID, limit int) ([]*state.JournalEntry, error)
}

// Server is a lightweight HTTP handler for webhook endpoints.
type Server struct {
	jobs      *state.JobStore
	submit    SubmitFunc
	journal   JournalReader
	headlines *headline.Store
	logger    *slog.Logger
	mux       *http.ServeMux
}

// NewServer creates a Server. journal and headlines may be nil, in which
// case the matching inspection endpoints answer 503.
func NewServer(jobs *state.JobStore, submit SubmitFunc, journal JournalReader, headlines *headline.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		jobs:      jobs,
		submit:    submit,
		journal:   journal,
		headlines: headlines,
		logger:    logger.With("component", "webhook"),
		mux:       http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /webhook", s.handleAdHoc)
	s.mux.HandleFunc("POST /webhook/{job}", s.handleJob)
	s.mux.HandleFunc("GET /api/journal", s.handleJournal)
	s.mux.HandleFunc("GET /api/headlines/{channel}", s.handleHeadlines)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// adHocRequest is the JSON body for POST /webhook.
type adHocRequest struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

func (s *Server) handleAdHoc(w http.ResponseWriter, r *http.Request) {
	var req adHocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Channel == "" || req.Text == "" {
		writeError(w, http.StatusBadRequest, "channel and text are required")
		return
	}

	s.enqueue(w, r, &types.InboundEvent{
		Source:    "webhook",
		ChannelID: types.ChannelID(req.Channel),
		SenderID:  "webhook",
		Text:      req.Text,
	})
}

// jobRequest is the optional JSON body for POST /webhook/{job}.
type jobRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("job")
	job, err := s.jobs.Get(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if !job.Enabled {
		writeError(w, http.StatusForbidden, "job is disabled")
		return
	}

	// Allow body to override the text
	var body jobRequest
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.enqueue(w, r, job.Event("webhook", body.Text))
}

func (s *Server) enqueue(w http.ResponseWriter, r *http.Request, ev *types.InboundEvent) {
	runID, err := s.submit(r.Context(), ev)
	if err != nil {
		s.logger.Error("enqueue failed", "channel", string(ev.ChannelID), "error", err)
		writeError(w, http.StatusServiceUnavailable, "could not enqueue message")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": string(runID)})
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, "journal not configured")
		return
	}

	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}
	channel := types.ChannelID(r.URL.Query().Get("channel"))

	entries, err := s.journal.Tail(r.Context(), channel, limit)
	if err != nil {
		s.logger.Error("tail journal failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if entries == nil {
		entries = []*state.JournalEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleHeadlines(w http.ResponseWriter, r *http.Request) {
	if s.headlines == nil {
		writeError(w, http.StatusServiceUnavailable, "headline store not configured")
		return
	}

	sess, err := s.headlines.Get(types.ChannelID(r.PathValue("channel")))
	switch {
	case errors.Is(err, headline.ErrSessionExpired):
		writeError(w, http.StatusGone, "headline session expired")
	case err != nil:
		writeError(w, http.StatusNotFound, "no headline session")
	default:
		writeJSON(w, http.StatusOK, sess)
	}
}
