package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"imagine-service/internal/domain"
	"imagine-service/internal/domain/model"
	"imagine-service/internal/usecase"

	"github.com/go-chi/chi/v5"
)

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, struct {
		Message string `json:"message"`
	}{Message: msg})
}

// writeError maps domain sentinels onto HTTP statuses. Anything unmapped is
// an internal error and the message is not echoed to the client.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrForbidden):
		writeMessage(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrConflict):
		writeMessage(w, http.StatusConflict, "conflicting update")
	case errors.Is(err, domain.ErrUpstream):
		writeMessage(w, http.StatusBadGateway, "upstream failure")
	default:
		s.log.Error().Err(err).Msg("internal error")
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
	}{Status: "ok"})
}

// handleImagine accepts a multipart form with an `image` file and a `prompt`
// field, and answers 202 with the new job id.
func (s *Server) handleImagine(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid multipart form or file too large")
		return
	}

	var (
		data        []byte
		filename    string
		contentType string
	)
	file, header, err := r.FormFile("image")
	if err == nil {
		defer file.Close()
		data, err = io.ReadAll(file)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "could not read image file")
			return
		}
		filename = header.Filename
		contentType = header.Header.Get("Content-Type")
	}

	jobID, err := s.imagineUC.Create(r.Context(), usecase.ImagineInput{
		UserID:      UserIDFrom(r.Context()),
		Prompt:      r.FormValue("prompt"),
		Image:       data,
		Filename:    filename,
		ContentType: contentType,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, struct {
		Message string `json:"message"`
		JobID   string `json:"jobId"`
	}{Message: "Image processing job created", JobID: jobID})
}

// handleWebhook ingests the provider's completion notification.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var payload usecase.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid webhook data")
		return
	}

	if err := s.webhookUC.Handle(r.Context(), payload); err != nil {
		s.writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "webhook processed successfully")
}

func (s *Server) handleJobGet(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	view, err := s.jobUC.Get(r.Context(), UserIDFrom(r.Context()), jobID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Job *usecase.JobView `json:"job"`
	}{Job: view})
}

func (s *Server) handleJobList(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	status := model.JobStatus(r.URL.Query().Get("status"))

	jobs, total, err := s.jobUC.List(r.Context(), UserIDFrom(r.Context()), status, page, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Jobs  []usecase.JobSummary `json:"jobs"`
		Total int                  `json:"total"`
	}{Jobs: jobs, Total: total})
}

// handleFileDownload redeems a signed token minted by the blob store.
func (s *Server) handleFileDownload(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeMessage(w, http.StatusBadRequest, "missing token")
		return
	}
	key, err := s.files.VerifyToken(token)
	if err != nil {
		s.writeError(w, err)
		return
	}
	data, contentType, err := s.files.Get(r.Context(), key)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
