package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dgnsrekt/textcast-go/internal/fetch"
	"github.com/dgnsrekt/textcast-go/internal/history"
	"github.com/dgnsrekt/textcast-go/internal/media"
	"github.com/dgnsrekt/textcast-go/internal/pipeline"
)

// SpeechRequest represents the request body for /v1/speech.
type SpeechRequest struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
	// Lang is an alias for Language.
	Lang  string        `json:"lang,omitempty"`
	Speed flexibleFloat `json:"speed,omitempty"`
}

// flexibleFloat accepts a JSON number or a numeric string. Anything else
// decodes to the default speed.
type flexibleFloat float64

func (f *flexibleFloat) UnmarshalJSON(b []byte) error {
	*f = flexibleFloat(pipeline.ParseSpeed(strings.Trim(string(bytes.TrimSpace(b)), `"`)))
	return nil
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// HealthResponse represents the response body for /v1/healthz and /v1/readyz.
type HealthResponse struct {
	Status string            `json:"status"`
	Engine string            `json:"engine,omitempty"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HistoryResponse represents the response body for /v1/history.
type HistoryResponse struct {
	Enabled bool          `json:"enabled"`
	Runs    []history.Run `json:"runs"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, RequestID: w.Header().Get(RequestIDHeader)})
}

// statusFor maps pipeline errors onto HTTP status codes.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, pipeline.ErrValidation):
		return http.StatusBadRequest
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, fetch.ErrFetchFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeArtifact(w http.ResponseWriter, art *media.Artifact, filename string) {
	h := w.Header()
	h.Set("Content-Type", art.ContentType)
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	h.Set("Cache-Control", "no-store")
	h.Set("Content-Length", strconv.Itoa(len(art.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(art.Data)
}

// handleHealthz handles GET /v1/healthz requests.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleReadyz runs every readiness check.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Checks: make(map[string]string)}
	if s.pipeline != nil {
		resp.Engine = s.pipeline.EngineName()
	}

	status := http.StatusOK
	for _, c := range s.checks {
		if err := c.Fn(r.Context()); err != nil {
			resp.Checks[c.Name] = err.Error()
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[c.Name] = "ok"
	}
	writeJSON(w, status, resp)
}

// handleHistory handles GET /v1/history requests.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := history.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	if s.history == nil || !s.history.Enabled() {
		writeJSON(w, http.StatusOK, HistoryResponse{Enabled: false, Runs: []history.Run{}})
		return
	}

	runs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("history query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Enabled: true, Runs: runs})
}

// handleSpeech handles POST /v1/speech requests.
func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.speechBody)

	var req SpeechRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Warn("failed to decode speech request", "error", err)
		if status := statusFor(err); status == http.StatusRequestEntityTooLarge {
			writeError(w, status, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	lang := req.Language
	if lang == "" {
		lang = req.Lang
	}

	ws, err := s.acquire(r.Context())
	if err != nil {
		s.logger.Error("workspace unavailable", "error", err)
		writeError(w, http.StatusInternalServerError, "workspace unavailable")
		return
	}
	defer s.release(r.Context(), ws)

	res, err := s.pipeline.Speech(r.Context(), ws, pipeline.SpeechRequest{
		RequestID: RequestID(r.Context()),
		Text:      req.Text,
		Language:  lang,
		Speed:     float64(req.Speed),
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeArtifact(w, res.Artifact, "audio.mp3")
}

// handleVideo handles POST /v1/video multipart requests.
func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxVideoBody)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.logger.Warn("failed to parse video form", "error", err)
		if status := statusFor(err); status == http.StatusRequestEntityTooLarge {
			writeError(w, status, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	audio, err := readFormFile(r, "audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, pipeline.ErrMissingAudio.Error())
		return
	}

	width, height, err := pipeline.ParseResolution(r.FormValue("resolution"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bg := r.FormValue("backgroundColor")
	if bg == "" {
		bg = r.FormValue("bg")
	}

	ws, err := s.acquire(r.Context())
	if err != nil {
		s.logger.Error("workspace unavailable", "error", err)
		writeError(w, http.StatusInternalServerError, "workspace unavailable")
		return
	}
	defer s.release(r.Context(), ws)

	res, err := s.pipeline.Video(r.Context(), ws, pipeline.VideoRequest{
		RequestID:       RequestID(r.Context()),
		Audio:           audio,
		BackgroundColor: bg,
		Width:           width,
		Height:          height,
		Title:           r.FormValue("title"),
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeArtifact(w, res.Artifact, "video.mp4")
}

func readFormFile(r *http.Request, field string) ([]byte, error) {
	f, _, err := r.FormFile(field)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, pipeline.ErrMissingAudio
	}
	return data, nil
}
