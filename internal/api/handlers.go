package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"scene-studio/internal/editor"
	"scene-studio/internal/gemini"
	"scene-studio/internal/presets"
)

const noImageMessage = "No image returned from API"

type errorBody struct {
	Error string `json:"error"`
}

type presetsBody struct {
	Presets []presets.Preset `json:"presets"`
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handlePresets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, presetsBody{Presets: s.presets.All()})
}

func (s *server) handleImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)

	var req editor.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}

	ctx := r.Context()
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	res, err := s.editor.Edit(ctx, req)
	if err != nil {
		status, msg := errorStatus(err)
		s.logger.ErrorContext(ctx, "edit request failed",
			"status", status, "request_id", RequestIDFromContext(ctx), "err", err)
		writeJSON(w, status, errorBody{Error: msg})
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// errorStatus maps an edit failure to the response status and message.
func errorStatus(err error) (int, string) {
	var apiErr *gemini.APIError
	switch {
	case errors.Is(err, gemini.ErrMissingAPIKey):
		return http.StatusInternalServerError, gemini.ErrMissingAPIKey.Error()
	case errors.As(err, &apiErr):
		status := apiErr.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		return status, apiErr.Message
	case errors.Is(err, gemini.ErrNoImage):
		return http.StatusBadGateway, noImageMessage
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
