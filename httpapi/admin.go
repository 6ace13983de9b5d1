package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/NimbusAI/avatarchat/databundle"
	"github.com/NimbusAI/avatarchat/handler"
	"github.com/NimbusAI/avatarchat/history"
	"github.com/NimbusAI/avatarchat/logger"
	"github.com/NimbusAI/avatarchat/session"
	"github.com/NimbusAI/avatarchat/types"
)

// History pagination defaults and bounds.
const (
	defaultHistoryPageSize = 20
	maxHistoryPageSize     = 100
)

// avatarTextDef is the bundle definition for text injected straight into
// the avatar's speech path.
var avatarTextDef = databundle.MustLockedDefinition(databundle.NewTextEntry("avatar_text"))

// textParam extracts the text payload from the query string or, on POST,
// from a JSON body {"text": "..."}.
func textParam(r *http.Request) string {
	if text := r.URL.Query().Get("text"); text != "" {
		return text
	}
	if r.Method == http.MethodPost && r.Body != nil {
		var body struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			return body.Text
		}
	}
	return ""
}

// findSession resolves the path's session id, writing the 404 body itself
// when the session is not live.
func (s *Server) findSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := r.PathValue("id")
	sess, ok := s.engine.Registry().Find(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found: "+id)
		return nil, false
	}
	return sess, true
}

// handleInput injects text straight into the avatar's speech path: the text
// is wrapped as a complete avatar utterance and submitted to the pipeline,
// bypassing dialogue.
func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.findSession(w, r)
	if !ok {
		return
	}
	text := textParam(r)
	if text == "" {
		writeError(w, http.StatusBadRequest, "missing text")
		return
	}

	bundle, err := databundle.New(avatarTextDef)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "service unavailable")
		return
	}
	bundle.AddMeta(types.MetaAvatarTextEnd, true)
	bundle.AddMeta(types.MetaSpeechID, uuid.New().String())
	if err := bundle.SetMainData(text); err != nil {
		writeError(w, http.StatusInternalServerError, "service unavailable")
		return
	}

	// Injected speech never crossed a client transport boundary, so it is
	// internally attributed even though an operator triggered it.
	data := &types.ChatData{
		Source:    types.SourceInternal,
		Type:      types.DataAvatarText,
		Data:      bundle,
		Timestamp: sess.Delegate().Timestamp(),
	}
	if err := sess.Delegate().Submit(data); err != nil {
		logger.Warn("input injection failed", "session_id", sess.ID(), "error", err)
		writeError(w, http.StatusInternalServerError, "service unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAnswer injects text as if the human had said it: it enters through
// the session delegate like any client frame, with loopback so the client
// transport immediately observes the injected utterance.
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.findSession(w, r)
	if !ok {
		return
	}
	text := textParam(r)
	if text == "" {
		writeError(w, http.StatusBadRequest, "missing text")
		return
	}

	res, err := sess.Delegate().PutData(types.ChannelText, text, handler.PutOptions{Loopback: true})
	if err != nil {
		logger.Warn("answer injection failed", "session_id", sess.ID(), "error", err)
		writeError(w, http.StatusInternalServerError, "service unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "result": res.String()})
}

type sessionEntry struct {
	ID            string `json:"id"`
	CreatedAt     string `json:"created_at_iso"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// handleSessions lists live sessions, newest first.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	live := s.engine.Registry().List()
	entries := make([]sessionEntry, 0, len(live))
	for _, sess := range live {
		entries = append(entries, sessionEntry{
			ID:            sess.ID(),
			CreatedAt:     sess.CreatedAt().UTC().Format(time.RFC3339),
			UptimeSeconds: int64(sess.Uptime().Seconds()),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": entries})
}

type historyResponse struct {
	Items    []history.Message `json:"items"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// handleHistory serves one page of the session's conversation history.
// Sessions without a history-capable handler serve empty pages.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.findSession(w, r)
	if !ok {
		return
	}

	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", defaultHistoryPageSize)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultHistoryPageSize
	}
	if pageSize > maxHistoryPageSize {
		pageSize = maxHistoryPageSize
	}

	resp := historyResponse{Items: []history.Message{}, Page: page, PageSize: pageSize}
	if provider, ok := sess.HistoryProvider(); ok {
		items, total, err := provider.History(r.Context(), page, pageSize)
		if err != nil {
			logger.Warn("history read failed", "session_id", sess.ID(), "error", err)
			writeError(w, http.StatusInternalServerError, "service unavailable")
			return
		}
		if items != nil {
			resp.Items = items
		}
		resp.Total = total
	}
	writeJSON(w, http.StatusOK, resp)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
