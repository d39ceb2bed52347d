package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"case-rag/internal/chat"
	"case-rag/internal/ingest"
	"case-rag/internal/models"
)

type fakeAsker struct{ got chat.AskRequest }

func (f *fakeAsker) Ask(_ context.Context, req chat.AskRequest) (*models.PromptResponse, error) {
	f.got = req
	if strings.TrimSpace(req.Question) == "" {
		return nil, models.ErrInvalidInput
	}
	return &models.PromptResponse{Query: req.Question, Content: "answer", Sources: []string{"Lease.pdf#1"}}, nil
}

type fakeIngester struct {
	got     ingest.Upload
	body    string
	deleted []string
}

func (f *fakeIngester) Ingest(_ context.Context, up ingest.Upload) (models.DocumentRef, error) {
	f.got = up
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(up.Reader)
	f.body = buf.String()
	return models.DocumentRef{ID: "doc-1", CaseID: up.CaseID, DisplayName: up.FileName}, nil
}

func (f *fakeIngester) Delete(_ context.Context, id string) (models.DocumentRef, error) {
	if id != "doc-1" {
		return models.DocumentRef{}, models.ErrNotFound
	}
	f.deleted = append(f.deleted, id)
	return models.DocumentRef{ID: id}, nil
}

type fakeLister struct{ docs []models.DocumentRef }

func (f *fakeLister) ListDocuments(_ context.Context, _ models.Scope, ownerID string, _ int) ([]models.DocumentRef, error) {
	if ownerID != "case-1" {
		return nil, nil
	}
	return f.docs, nil
}

type fakeLeads struct{ saved []models.Lead }

func (f *fakeLeads) SaveLead(_ context.Context, lead models.Lead) error {
	f.saved = append(f.saved, lead)
	return nil
}

type countLimiter struct {
	max  int
	hits map[string]int
}

func (l *countLimiter) Allow(_ context.Context, key string) bool {
	l.hits[key]++
	return l.hits[key] <= l.max
}

type fixture struct {
	srv    *Server
	asker  *fakeAsker
	ingest *fakeIngester
	leads  *fakeLeads
}

func newFixture() *fixture {
	f := &fixture{asker: &fakeAsker{}, ingest: &fakeIngester{}, leads: &fakeLeads{}}
	f.srv = New(Deps{
		Chat:      f.asker,
		Ingest:    f.ingest,
		Documents: &fakeLister{docs: []models.DocumentRef{{ID: "doc-1", CaseID: "case-1", DisplayName: "Lease.pdf"}}},
		Leads:     f.leads,
		Limiter:   &countLimiter{max: 2, hits: map[string]int{}},
	})
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := newFixture().do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestChatRoutes(t *testing.T) {
	f := newFixture()

	rec := f.do(httptest.NewRequest(http.MethodPost, "/api/cases/case-1/chat", strings.NewReader(`{"question":"What is the rent?"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ScopeCase, f.asker.got.Scope)
	assert.Equal(t, "case-1", f.asker.got.OwnerID)

	var resp models.PromptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "answer", resp.Content)
	assert.Equal(t, []string{"Lease.pdf#1"}, resp.Sources)

	rec = f.do(httptest.NewRequest(http.MethodPost, "/api/documents/doc-1/chat", strings.NewReader(`{"question":"Deposit?","history":[{"role":"user","content":"hi"}]}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ScopeDocument, f.asker.got.Scope)
	assert.Equal(t, "doc-1", f.asker.got.OwnerID)
	assert.Len(t, f.asker.got.History, 1)
}

func TestChat_BadRequests(t *testing.T) {
	f := newFixture()

	rec := f.do(httptest.NewRequest(http.MethodPost, "/api/cases/case-1/chat", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodPost, "/api/cases/case-1/chat", strings.NewReader(`{"question":" "}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListDocuments(t *testing.T) {
	f := newFixture()

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/cases/case-1/documents", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"display_name":"Lease.pdf"`)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/cases/other/documents", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"documents":[]}`, rec.Body.String())
}

func TestUploadAndDelete(t *testing.T) {
	f := newFixture()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "Lease.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("Rent is $1,200."))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/cases/case-1/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := f.do(req)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "case-1", f.ingest.got.CaseID)
	assert.Equal(t, "Lease.txt", f.ingest.got.FileName)
	assert.Equal(t, "Rent is $1,200.", f.ingest.body)

	rec = f.do(httptest.NewRequest(http.MethodDelete, "/api/documents/doc-1", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(httptest.NewRequest(http.MethodDelete, "/api/documents/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpload_MissingFile(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("note", "x"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/cases/case-1/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := newFixture().do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateLead(t *testing.T) {
	f := newFixture()

	post := func(payload string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader(payload))
		req.RemoteAddr = "203.0.113.7:5123"
		return f.do(req)
	}

	rec := post(`{"firm_id":"firm-1","name":"Ana Ruiz","email":"ana@example.com","case_type":"tenant"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, f.leads.saved, 1)
	assert.NotEmpty(t, f.leads.saved[0].ID)
	assert.Equal(t, "Ana Ruiz", f.leads.saved[0].Name)

	rec = post(`{"firm_id":"firm-1","name":"Ana Ruiz"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(`{"firm_id":"firm-1","name":"Ana Ruiz","phone":"555-0100"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Len(t, f.leads.saved, 1)
}

func TestCreateLead_ForwardedForIgnoredFromUntrustedPeer(t *testing.T) {
	f := newFixture()

	var codes []int
	for i, xff := range []string{"198.51.100.1", "198.51.100.2", "198.51.100.3"} {
		req := httptest.NewRequest(http.MethodPost, "/api/leads",
			strings.NewReader(`{"firm_id":"firm-1","name":"Ana Ruiz","phone":"555-010`+string(rune('0'+i))+`"}`))
		req.RemoteAddr = "203.0.113.7:5123"
		req.Header.Set("X-Forwarded-For", xff)
		req.Header.Set("X-Real-IP", xff)
		codes = append(codes, f.do(req).Code)
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)
}

type keyRecorder struct{ keys []string }

func (k *keyRecorder) Allow(_ context.Context, key string) bool {
	k.keys = append(k.keys, key)
	return true
}

func TestClientIP_TrustedProxy(t *testing.T) {
	rec := &keyRecorder{}
	srv := New(Deps{
		Chat:           &fakeAsker{},
		Ingest:         &fakeIngester{},
		Documents:      &fakeLister{},
		Leads:          &fakeLeads{},
		Limiter:        rec,
		TrustedProxies: []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")},
	})

	send := func(remote, xff string) {
		req := httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader(`{"firm_id":"f","name":"A","phone":"1"}`))
		req.RemoteAddr = remote
		if xff != "" {
			req.Header.Set("X-Forwarded-For", xff)
		}
		srv.ServeHTTP(httptest.NewRecorder(), req)
	}

	send("10.0.0.5:443", "203.0.113.9")
	send("10.0.0.5:443", "1.2.3.4, 203.0.113.9, 10.0.0.4")
	send("10.0.0.5:443", "")
	send("[::ffff:203.0.113.7]:80", "10.9.9.9")

	assert.Equal(t, []string{
		"lead:203.0.113.9",
		"lead:203.0.113.9",
		"lead:10.0.0.5",
		"lead:203.0.113.7",
	}, rec.keys)
}

func TestCreateLead_InvalidEmail(t *testing.T) {
	rec := newFixture().do(httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader(`{"firm_id":"f","name":"A","email":"nope"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateLead_Disabled(t *testing.T) {
	srv := New(Deps{Chat: &fakeAsker{}, Ingest: &fakeIngester{}, Documents: &fakeLister{}})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusUnsupportedMediaType, statusFor(models.ErrUnsupportedFormat))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
