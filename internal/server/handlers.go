package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"docchat/internal/chat"
	"docchat/internal/domain"
)

type chatRequest struct {
	Question string `json:"question"`
	Doc      string `json:"doc,omitempty"` // restrict this turn to one document
}

type sourceJSON struct {
	Doc         string  `json:"doc"`
	Page        int     `json:"page"`
	ContentType string  `json:"content_type"`
	Score       float64 `json:"score"`
}

type matchJSON struct {
	sourceJSON
	Content string `json:"content"`
	Summary string `json:"summary,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSuggestions(w http.ResponseWriter, _ *http.Request) {
	questions := s.suggestions
	if questions == nil {
		questions = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := strings.TrimSpace(query.Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	opts := chat.Options{Doc: query.Get("doc")}
	if k := query.Get("k"); k != "" {
		n, err := strconv.Atoi(k)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "k must be a positive integer")
			return
		}
		opts.TopK = n
	}
	matches, err := s.chat.RetrieveWithOptions(r.Context(), q, opts)
	if err != nil {
		s.log.Error().Err(err).Str("question", q).Msg("retrieval failed")
		writeError(w, http.StatusBadGateway, "retrieval failed")
		return
	}
	out := make([]matchJSON, 0, len(matches))
	for _, m := range matches {
		out = append(out, matchJSON{
			sourceJSON: sourceOf(m),
			Content:    m.Record.Content,
			Summary:    m.Record.Summary,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": out})
}

// handleChat streams the answer over server-sent events: one sources event,
// then a delta event per text chunk, closed by a done or error event.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	answer, err := s.chat.AskWithOptions(r.Context(), question, chat.Options{Doc: req.Doc})
	if err != nil {
		if errors.Is(err, chat.ErrEmptyQuestion) {
			writeError(w, http.StatusBadRequest, "question is required")
			return
		}
		s.log.Error().Err(err).Str("question", question).Msg("ask failed")
		writeError(w, http.StatusBadGateway, "answer generation failed")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sources := make([]sourceJSON, 0, len(answer.Matches))
	for _, m := range answer.Matches {
		sources = append(sources, sourceOf(m))
	}
	writeEvent(w, "sources", sources)
	flusher.Flush()

	for chunk := range answer.Chunks() {
		writeEvent(w, "delta", map[string]string{"text": chunk})
		flusher.Flush()
	}
	if err := answer.Err(); err != nil {
		s.log.Error().Err(err).Str("question", question).Msg("stream ended with error")
		writeEvent(w, "error", map[string]string{"error": err.Error()})
	} else {
		writeEvent(w, "done", map[string]string{})
	}
	flusher.Flush()
}

func sourceOf(m domain.Match) sourceJSON {
	return sourceJSON{
		Doc:         m.Record.Doc,
		Page:        m.Record.Page,
		ContentType: m.Record.ContentType,
		Score:       float64(m.Score),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeEvent(w io.Writer, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
