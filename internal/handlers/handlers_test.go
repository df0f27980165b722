package handlers

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xelth-com/eckdesk/internal/config"
	"github.com/xelth-com/eckdesk/internal/models"
	"github.com/xelth-com/eckdesk/internal/reporting"
	"github.com/xelth-com/eckdesk/internal/services/requests"
	"github.com/xelth-com/eckdesk/internal/storage"
	"github.com/xelth-com/eckdesk/internal/utils"
)

const testSecret = "handlers-test-secret"

type memStore struct {
	mu       sync.Mutex
	requests map[string]models.Request
	events   []models.RequestEvent
}

func (m *memStore) Create(_ context.Context, r *models.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[r.ID] = *r
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (*models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, requests.ErrNotFound
	}
	return &r, nil
}

func (m *memStore) List(_ context.Context, f requests.ListFilter) ([]models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Request{}
	for _, r := range m.requests {
		if f.RequesterUID != "" && r.RequesterUID != f.RequesterUID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) Update(_ context.Context, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.requests[id]
	for k, v := range fields {
		switch k {
		case "status":
			r.Status = v.(string)
		case "technician":
			r.Technician = v.(string)
		case "priority":
			r.Priority = v.(string)
		case "site":
			r.Site = v.(string)
		case "updated_by":
			r.UpdatedBy = v.(string)
		}
	}
	m.requests[id] = r
	return nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.requests, id)
	return nil
}

func (m *memStore) AddAttachment(_ context.Context, a *models.Attachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.requests[a.RequestID]
	r.Attachments = append(r.Attachments, *a)
	m.requests[a.RequestID] = r
	return nil
}

func (m *memStore) RemoveAttachment(_ context.Context, requestID, attachmentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.requests[requestID]
	kept := r.Attachments[:0:0]
	for _, a := range r.Attachments {
		if a.ID != attachmentID {
			kept = append(kept, a)
		}
	}
	r.Attachments = kept
	m.requests[requestID] = r
	return nil
}

func (m *memStore) RecordEvent(_ context.Context, e *models.RequestEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *e)
	return nil
}

func (m *memStore) Events(_ context.Context, requestID string) ([]models.RequestEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.RequestEvent{}
	for _, e := range m.events {
		if e.RequestID == requestID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeFiles struct {
	uploaded []string
}

func (f *fakeFiles) Upload(_ context.Context, file storage.File) (*storage.Object, error) {
	if _, err := io.Copy(io.Discard, file.Body); err != nil {
		return nil, err
	}
	f.uploaded = append(f.uploaded, file.Name)
	return &storage.Object{URL: "https://files.test/" + file.Name, PublicID: "requests/others/" + file.Name}, nil
}

func (f *fakeFiles) Delete(context.Context, string, string) error { return nil }

type fixture struct {
	router  *Router
	store   *memStore
	files   *fakeFiles
	reports *reporting.Aggregator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := &memStore{requests: map[string]models.Request{}}
	files := &fakeFiles{}
	agg := reporting.NewAggregator(0, 0)
	cfg := &config.Config{
		JWTSecret: testSecret,
		BaseURL:   "http://desk.test",
		Reports:   config.ReportsConfig{CacheSize: 8, CacheTTL: time.Minute},
	}
	return &fixture{
		router: NewRouter(Deps{
			Config:   cfg,
			Requests: requests.NewService(store, files, nil),
			Reports:  agg,
		}),
		store:   store,
		files:   files,
		reports: agg,
	}
}

var (
	adminUser = &models.UserAuth{ID: "00000000-0000-0000-0000-00000000000a", Email: "admin@desk.test", Name: "Ama Admin", Role: models.RoleAdmin}
	alice     = &models.UserAuth{ID: "00000000-0000-0000-0000-0000000000a1", Email: "alice@desk.test", Name: "Alice", Role: models.RoleUser}
	bob       = &models.UserAuth{ID: "00000000-0000-0000-0000-0000000000b0", Email: "bob@desk.test", Name: "Bob", Role: models.RoleUser}
)

func (f *fixture) do(t *testing.T, user *models.UserAuth, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if user != nil {
		token, _, err := utils.GenerateTokens(user, testSecret)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) doJSON(t *testing.T, user *models.UserAuth, method, target string, v interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if v != nil {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		body = bytes.NewReader(b)
	}
	return f.do(t, user, method, target, body, "application/json")
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func (f *fixture) create(t *testing.T, user *models.UserAuth, description string) models.Request {
	t.Helper()
	rec := f.doJSON(t, user, http.MethodPost, "/api/requests", map[string]string{
		"description": description,
		"site":        "Accra HQ",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	return decode[models.Request](t, rec)
}

func TestPublicEndpoints(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/health", "/api/status", "/api/options", "/metrics"} {
		if rec := f.do(t, nil, http.MethodGet, path, nil, ""); rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}

	opts := decode[map[string][]string](t, f.do(t, nil, http.MethodGet, "/api/options", nil, ""))
	if len(opts["statuses"]) != len(models.Statuses) || len(opts["technicians"]) != len(models.Technicians) {
		t.Errorf("unexpected options %+v", opts)
	}
}

func TestProtectedEndpointsRequireToken(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/api/requests", "/api/reports", "/api/me"} {
		if rec := f.do(t, nil, http.MethodGet, path, nil, ""); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, rec.Code)
		}
	}
}

func TestCreateRequestJSON(t *testing.T) {
	f := newFixture(t)

	created := f.create(t, alice, "Printer jammed on floor 2\nPaper stuck in tray 3")
	if created.Title != "Printer jammed on floor 2" {
		t.Errorf("unexpected title %q", created.Title)
	}
	if created.Requester != "Alice" || created.RequesterUID != alice.ID || created.Status != models.StatusOpen {
		t.Errorf("unexpected request %+v", created)
	}

	rec := f.doJSON(t, alice, http.MethodPost, "/api/requests", map[string]string{"description": "x", "site": "Mars"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unknown site, got %d", rec.Code)
	}
	if body := decode[map[string]string](t, rec); body["field"] != "site" {
		t.Errorf("expected the site field to be reported, got %+v", body)
	}

	if rec := f.do(t, alice, http.MethodPost, "/api/requests", strings.NewReader("{"), "application/json"); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad JSON, got %d", rec.Code)
	}
}

func TestCreateRequestMultipart(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("requester", "Alice A.")
	mw.WriteField("description", "Screen flickers")
	mw.WriteField("priority", models.PriorityHigh)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="files"; filename="screen.png"`)
	h.Set("Content-Type", "image/png")
	part, _ := mw.CreatePart(h)
	part.Write([]byte("png-bytes"))
	mw.Close()

	rec := f.do(t, alice, http.MethodPost, "/api/requests", &buf, mw.FormDataContentType())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	created := decode[models.Request](t, rec)
	if created.Requester != "Alice A." || created.Priority != models.PriorityHigh {
		t.Errorf("form fields not applied: %+v", created)
	}
	if len(created.Attachments) != 1 || created.Attachments[0].FileName != "screen.png" || created.Attachments[0].FileType != "image/png" {
		t.Errorf("unexpected attachments %+v", created.Attachments)
	}
	if len(f.files.uploaded) != 1 {
		t.Errorf("expected one upload, got %v", f.files.uploaded)
	}
}

func TestRequestAccessRules(t *testing.T) {
	f := newFixture(t)
	mine := f.create(t, alice, "VPN drops")
	f.create(t, bob, "Keyboard broken")

	if rec := f.do(t, alice, http.MethodGet, "/api/requests/"+mine.ID, nil, ""); rec.Code != http.StatusOK {
		t.Errorf("owner: expected 200, got %d", rec.Code)
	}
	if rec := f.do(t, bob, http.MethodGet, "/api/requests/"+mine.ID, nil, ""); rec.Code != http.StatusForbidden {
		t.Errorf("other user: expected 403, got %d", rec.Code)
	}
	if rec := f.do(t, adminUser, http.MethodGet, "/api/requests/"+mine.ID, nil, ""); rec.Code != http.StatusOK {
		t.Errorf("admin: expected 200, got %d", rec.Code)
	}
	if rec := f.do(t, alice, http.MethodGet, "/api/requests/not-a-uuid", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}

	list := decode[[]models.Request](t, f.do(t, alice, http.MethodGet, "/api/requests", nil, ""))
	if len(list) != 1 || list[0].ID != mine.ID {
		t.Errorf("users only see their own requests, got %d", len(list))
	}
	all := decode[[]models.Request](t, f.do(t, adminUser, http.MethodGet, "/api/requests", nil, ""))
	if len(all) != 2 {
		t.Errorf("admins see every request, got %d", len(all))
	}
}

func TestUpdateRequest(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, alice, "Outlook crashes")
	status := models.StatusResolved
	technician := models.Technicians[0]
	body := requests.UpdateInput{Status: &status, Technician: &technician}

	if rec := f.doJSON(t, alice, http.MethodPut, "/api/requests/"+r.ID, body); rec.Code != http.StatusForbidden {
		t.Errorf("owner update: expected 403, got %d", rec.Code)
	}

	rec := f.doJSON(t, adminUser, http.MethodPut, "/api/requests/"+r.ID, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin update: expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	updated := decode[models.Request](t, rec)
	if updated.Status != status || updated.Technician != technician || updated.UpdatedBy != adminUser.Email {
		t.Errorf("unexpected update result %+v", updated)
	}

	events := decode[[]models.RequestEvent](t, f.do(t, alice, http.MethodGet, "/api/requests/"+r.ID+"/events", nil, ""))
	if len(events) != 2 || events[1].Action != models.ActionUpdated {
		t.Errorf("unexpected events %+v", events)
	}
}

func TestDeleteRequest(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, alice, "Old laptop")

	if rec := f.do(t, bob, http.MethodDelete, "/api/requests/"+r.ID, nil, ""); rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
	if rec := f.do(t, alice, http.MethodDelete, "/api/requests/"+r.ID, nil, ""); rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if _, ok := f.store.requests[r.ID]; ok {
		t.Error("request still stored")
	}
}

func TestAttachmentRoutesAreAdminOnly(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, alice, "Scanner offline")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "log.txt")
	part.Write([]byte("error log"))
	mw.Close()
	payload := buf.Bytes()

	if rec := f.do(t, alice, http.MethodPost, "/api/requests/"+r.ID+"/attachments", bytes.NewReader(payload), mw.FormDataContentType()); rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
	rec := f.do(t, adminUser, http.MethodPost, "/api/requests/"+r.ID+"/attachments", bytes.NewReader(payload), mw.FormDataContentType())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	a := decode[models.Attachment](t, rec)

	if rec := f.do(t, adminUser, http.MethodDelete, "/api/requests/"+r.ID+"/attachments/"+a.ID, nil, ""); rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestRequestSlipPDF(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, alice, "Label printer")

	rec := f.do(t, alice, http.MethodGet, "/api/requests/"+r.ID+"/slip.pdf", nil, "")
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "%PDF-") {
		t.Fatalf("expected a PDF, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("unexpected content type %q", ct)
	}

	if rec := f.do(t, alice, http.MethodGet, "/api/requests/labels.pdf", nil, ""); rec.Code != http.StatusForbidden {
		t.Errorf("labels: expected 403 for users, got %d", rec.Code)
	}
	if rec := f.do(t, adminUser, http.MethodGet, "/api/requests/labels.pdf?cols=2&rows=5", nil, ""); rec.Code != http.StatusOK {
		t.Errorf("labels: expected 200, got %d", rec.Code)
	}
}

func seedReports(f *fixture) {
	now := time.Now()
	at := func(d time.Duration) *time.Time { t := now.Add(-d); return &t }
	f.reports.Update([]models.Request{
		{ID: "r1", Title: "Mail", Status: models.StatusOpen, Priority: models.PriorityHigh, Date: at(time.Hour)},
		{ID: "r2", Title: "VPN", Status: models.StatusClosed, Priority: models.PriorityLow, Date: at(2 * 24 * time.Hour)},
		{ID: "r3", Title: "Old", Status: models.StatusClosed, Priority: models.PriorityMedium, Date: at(20 * 24 * time.Hour)},
	})
}

func TestReports(t *testing.T) {
	f := newFixture(t)
	seedReports(f)

	weekly := decode[reporting.Report](t, f.do(t, alice, http.MethodGet, "/api/reports", nil, ""))
	if weekly.Timeframe != reporting.Weekly || weekly.Stats.Total != 2 || weekly.Stats.HighPriority != 1 {
		t.Errorf("unexpected weekly report %+v", weekly.Stats)
	}
	if len(weekly.Cards) != 6 || weekly.Cards[0].Enabled {
		t.Errorf("user cards should be visible but disabled: %+v", weekly.Cards)
	}

	if rec := f.do(t, alice, http.MethodGet, "/api/reports?filter=open", nil, ""); rec.Code != http.StatusForbidden {
		t.Errorf("users cannot filter: expected 403, got %d", rec.Code)
	}
	if rec := f.do(t, alice, http.MethodGet, "/api/reports?timeframe=yearly", nil, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for an unknown timeframe, got %d", rec.Code)
	}

	monthly := decode[reporting.Report](t, f.do(t, adminUser, http.MethodGet, "/api/reports?timeframe=monthly&filter=closed", nil, ""))
	if monthly.Stats.Total != 3 || len(monthly.Requests) != 2 || monthly.ListTitle != "Closed Requests" {
		t.Errorf("unexpected monthly report %+v", monthly)
	}
}

func TestReportExports(t *testing.T) {
	f := newFixture(t)
	seedReports(f)

	if rec := f.do(t, alice, http.MethodGet, "/api/reports/export.csv", nil, ""); rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}

	rec := f.do(t, adminUser, http.MethodGet, "/api/reports/export.csv?timeframe=monthly", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rows, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 || rows[0][0] != "id" || rows[1][0] != "r1" || rows[1][6] != "high" {
		t.Errorf("unexpected csv %v", rows)
	}

	pdf := f.do(t, adminUser, http.MethodGet, "/api/reports/export.pdf?filter=open", nil, "")
	if pdf.Code != http.StatusOK || !strings.HasPrefix(pdf.Body.String(), "%PDF-") {
		t.Errorf("expected a PDF, got %d", pdf.Code)
	}
}

func TestMe(t *testing.T) {
	f := newFixture(t)
	me := decode[map[string]string](t, f.do(t, adminUser, http.MethodGet, "/api/me", nil, ""))
	if me["role"] != models.RoleAdmin || me["email"] != adminUser.Email {
		t.Errorf("unexpected identity %+v", me)
	}
}

func TestRespondServiceError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{requests.ErrNotFound, http.StatusNotFound},
		{requests.ErrForbidden, http.StatusForbidden},
		{reporting.ErrNotPrivileged, http.StatusForbidden},
		{&requests.ValidationError{Field: "status", Message: "unknown"}, http.StatusBadRequest},
		{storage.ErrNotConfigured, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		respondServiceError(rec, tt.err)
		if rec.Code != tt.status {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.status, rec.Code)
		}
	}
}
