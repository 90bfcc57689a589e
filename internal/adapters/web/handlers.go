package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/corey/chatscan/internal/adapters/socket"
	"github.com/corey/chatscan/internal/domain/session"
	"github.com/gorilla/mux"
)

// ShareResult is the body of GET /api/sessions/{id}/share.
type ShareResult struct {
	Query string `json:"query"`
	URL   string `json:"url"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.queries.Health()
	h.Uptime = time.Since(s.started).Round(time.Second).String()
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.queries.SessionList())
}

// handleCreateSession accepts either the shareable query string
// (?keywords=a,b&streamer=id) or a JSON body of socket.CreateParams.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var p socket.CreateParams
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	} else {
		kws, filter, err := session.DecodeQuery(r.URL.RawQuery)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		p = socket.CreateParams{Keywords: kws, SourceFilter: filter}
	}

	ctx, cancel := s.scanContext(r)
	defer cancel()
	st, err := s.queries.CreateSession(ctx, p.Keywords, p.SourceFilter)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	st, err := s.queries.SessionStatus(mux.Vars(r)["id"])
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.queries.DeleteSession(mux.Vars(r)["id"]); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleContinue(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.scanContext(r)
	defer cancel()
	st, err := s.queries.ContinueSession(ctx, mux.Vars(r)["id"])
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.scanContext(r)
	defer cancel()
	st, err := s.queries.RestartSession(ctx, mux.Vars(r)["id"])
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSetKeywords(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Keywords []string `json:"keywords"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	ctx, cancel := s.scanContext(r)
	defer cancel()
	st, err := s.queries.SetSessionKeywords(ctx, mux.Vars(r)["id"], body.Keywords)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SourceFilter string `json:"source_filter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	ctx, cancel := s.scanContext(r)
	defer cancel()
	st, err := s.queries.SetSessionFilter(ctx, mux.Vars(r)["id"], body.SourceFilter)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	st, err := s.queries.SessionStatus(mux.Vars(r)["id"])
	if err != nil {
		writeAppError(w, err)
		return
	}
	q := session.EncodeQuery(st.Keywords, st.SourceFilter)
	writeJSON(w, http.StatusOK, ShareResult{
		Query: q,
		URL:   "http://" + r.Host + "/?" + q,
	})
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	recordingID := q.Get("recording_id")
	if recordingID == "" {
		recordingID = q.Get("video_id")
	}
	offset, err := strconv.Atoi(q.Get("offset"))
	if recordingID == "" || err != nil {
		writeError(w, http.StatusBadRequest, "recording_id and integer offset are required")
		return
	}

	res, err := s.queries.Context(r.Context(), recordingID, offset)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStreamers(w http.ResponseWriter, r *http.Request) {
	res, err := s.queries.Streamers(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
