package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/chi/v5"

	"case-rag/internal/chat"
	"case-rag/internal/helper"
	"case-rag/internal/ingest"
	"case-rag/internal/models"
)

var errLeadsDisabled = errors.New("lead intake is not configured")

type chatRequest struct {
	Question string               `json:"question"`
	History  []models.ChatMessage `json:"history"`
}

type leadRequest struct {
	FirmID   string `json:"firm_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	CaseType string `json:"case_type"`
	Message  string `json:"message"`
	Source   string `json:"source"`
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", models.ErrInvalidInput, err)
	}
	return nil
}

func (s *Server) handleChat(scope models.Scope, param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		resp, err := s.deps.Chat.Ask(r.Context(), chat.AskRequest{
			Scope:    scope,
			OwnerID:  chi.URLParam(r, param),
			Question: req.Question,
			History:  req.History,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.deps.Documents.ListDocuments(r.Context(), models.ScopeCase, chi.URLParam(r, "caseID"), s.deps.ListLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	if docs == nil {
		docs = []models.DocumentRef{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "file too large"})
			return
		}
		writeError(w, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, fmt.Errorf("%w: missing file field", models.ErrInvalidInput))
		return
	}
	defer file.Close()

	ref, err := s.deps.Ingest.Ingest(r.Context(), ingest.Upload{
		CaseID:      chi.URLParam(r, "caseID"),
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Reader:      file,
		Size:        header.Size,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ref)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if _, err := s.deps.Ingest.Delete(r.Context(), chi.URLParam(r, "documentID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateLead(w http.ResponseWriter, r *http.Request) {
	if s.deps.Leads == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": errLeadsDisabled.Error()})
		return
	}
	if s.deps.Limiter != nil && !s.deps.Limiter.Allow(r.Context(), "lead:"+s.clientIP(r)) {
		writeError(w, fmt.Errorf("%w: too many submissions, try again later", models.ErrRateLimited))
		return
	}

	var req leadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	lead, err := s.newLead(req)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.deps.Leads.SaveLead(r.Context(), lead); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, lead)
}

func (s *Server) newLead(req leadRequest) (models.Lead, error) {
	lead := models.Lead{
		FirmID:   strings.TrimSpace(req.FirmID),
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.TrimSpace(req.Email),
		Phone:    strings.TrimSpace(req.Phone),
		CaseType: strings.TrimSpace(req.CaseType),
		Message:  strings.TrimSpace(req.Message),
		Source:   strings.TrimSpace(req.Source),
	}
	if lead.FirmID == "" || lead.Name == "" {
		return models.Lead{}, fmt.Errorf("%w: firm_id and name are required", models.ErrInvalidInput)
	}
	if lead.Email == "" && lead.Phone == "" {
		return models.Lead{}, fmt.Errorf("%w: email or phone is required", models.ErrInvalidInput)
	}
	if lead.Email != "" {
		if _, err := mail.ParseAddress(lead.Email); err != nil {
			return models.Lead{}, fmt.Errorf("%w: invalid email", models.ErrInvalidInput)
		}
	}

	id, err := helper.GenerateUUID()
	if err != nil {
		return models.Lead{}, err
	}
	lead.ID = id
	lead.CreatedAt = s.now().UTC()
	return lead, nil
}
