package acervo

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"

	"github.com/acervo-cultural/acervo/pkg/auth"
	"github.com/acervo-cultural/acervo/pkg/media"
	"github.com/acervo-cultural/acervo/pkg/models"
	"github.com/acervo-cultural/acervo/pkg/service"
	"github.com/acervo-cultural/acervo/pkg/store/cqrs"
	"github.com/acervo-cultural/acervo/pkg/store/memory"
)

const (
	testSecret = "test-secret"
	testAsset  = "3f1c2a9e-6b7d-4c1e-9a55-0d2b8e7f4a10.jpg"
)

type fakeUploader struct {
	uploaded []media.File
	deleted  []string
}

func (f *fakeUploader) Upload(ctx context.Context, file media.File, opts media.Options) (*media.Result, error) {
	body, err := io.ReadAll(file.Body)
	if err != nil {
		return nil, err
	}
	f.uploaded = append(f.uploaded, file)
	return &media.Result{
		AssetID:      opts.Folder + "/" + testAsset,
		SecureURL:    "https://cdn.example.com/" + opts.Folder + "/" + testAsset,
		Format:       "jpg",
		Bytes:        int64(len(body)),
		ResourceType: "image",
	}, nil
}

func (f *fakeUploader) Delete(ctx context.Context, assetID string) error {
	f.deleted = append(f.deleted, assetID)
	return nil
}

type apiSuite struct {
	suite.Suite
	ctx      context.Context
	app      *App
	store    *memory.Store
	uploader *fakeUploader
	server   *httptest.Server
	verifier *auth.Verifier
}

func TestAPI(t *testing.T) {
	suite.Run(t, new(apiSuite))
}

func (s *apiSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.New()
	s.uploader = &fakeUploader{}
	s.app = NewWithStore(&Config{
		Backend:       BackendMemory,
		MigrationMode: cqrs.ModeSingle,
		JWTSecret:     testSecret,
		UploadPreset:  "acervo",
	}, s.store, Options{Logger: zerolog.Nop(), Uploader: s.uploader})
	s.server = httptest.NewServer(s.app.Handler())
	s.verifier = auth.NewVerifier(testSecret, "")
}

func (s *apiSuite) TearDownTest() {
	s.server.Close()
	s.NoError(s.app.Close())
}

// signIn creates the profile with role and returns a bearer token for it.
func (s *apiSuite) signIn(userID string, role models.Role) string {
	id := service.Identity{UserID: userID, Email: userID + "@example.com"}
	_, err := s.app.users.EnsureProfile(s.ctx, id)
	s.Require().NoError(err)
	if role != models.RoleViewer {
		s.Require().NoError(s.app.users.SetRole(s.ctx, userID, role))
	}
	token, err := s.verifier.Issue(id, time.Hour)
	s.Require().NoError(err)
	return token
}

type request struct {
	method  string
	path    string
	body    any
	token   string
	session string
}

func (s *apiSuite) do(req request) (*http.Response, []byte) {
	var body io.Reader
	if req.body != nil {
		b, err := json.Marshal(req.body)
		s.Require().NoError(err)
		body = bytes.NewReader(b)
	}
	r, err := http.NewRequest(req.method, s.server.URL+req.path, body)
	s.Require().NoError(err)
	if req.token != "" {
		r.Header.Set("Authorization", "Bearer "+req.token)
	}
	if req.session != "" {
		r.Header.Set(sessionHeader, req.session)
	}
	resp, err := http.DefaultClient.Do(r)
	s.Require().NoError(err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return resp, out
}

func (s *apiSuite) decodeBody(b []byte, dst any) {
	s.Require().NoError(json.Unmarshal(b, dst), string(b))
}

func eventBody(title string, date string) map[string]any {
	return map[string]any{
		"title":    title,
		"type":     string(models.EventTypeMusic),
		"category": "Concerto",
		"date":     date,
		"location": "Teatro Municipal",
		"images":   []string{"https://cdn.example.com/a.jpg"},
	}
}

// createEvent creates an event as an editor and returns its id.
func (s *apiSuite) createEvent(token, title, date string) string {
	resp, body := s.do(request{method: "POST", path: "/api/events", body: eventBody(title, date), token: token})
	s.Require().Equal(http.StatusCreated, resp.StatusCode, string(body))
	var event models.Event
	s.decodeBody(body, &event)
	s.Require().NotEmpty(event.ID)
	s.Equal("/api/events/"+event.ID, resp.Header.Get("Location"))
	return event.ID
}

func (s *apiSuite) TestHealth() {
	resp, body := s.do(request{method: "GET", path: "/health"})
	s.Equal(http.StatusOK, resp.StatusCode)

	var health map[string]any
	s.decodeBody(body, &health)
	s.Equal("healthy", health["status"])
	s.Equal("memory", health["backend"])
	s.Equal("single", health["mode"])
	s.Equal(false, health["readOnly"])
	s.NotEmpty(resp.Header.Get(sessionHeader))
}

func (s *apiSuite) TestSessionHeaderIsEchoed() {
	resp, _ := s.do(request{method: "GET", path: "/health", session: "abc123"})
	s.Equal("abc123", resp.Header.Get(sessionHeader))
	s.Empty(resp.Cookies(), "no cookie is issued when the client sent a session")
}

func (s *apiSuite) TestCreateEventRoles() {
	resp, _ := s.do(request{method: "POST", path: "/api/events", body: eventBody("Show", "2023-05-10T19:00:00Z")})
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	viewer := s.signIn("viewer", models.RoleViewer)
	resp, _ = s.do(request{method: "POST", path: "/api/events", body: eventBody("Show", "2023-05-10T19:00:00Z"), token: viewer})
	s.Equal(http.StatusForbidden, resp.StatusCode)

	editor := s.signIn("editor", models.RoleEditor)
	id := s.createEvent(editor, "Show", "2023-05-10T19:00:00Z")

	resp, body := s.do(request{method: "GET", path: "/api/events/" + id})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var event models.Event
	s.decodeBody(body, &event)
	s.Equal("Show", event.Title)
	s.Equal("editor", event.CreatedBy)
	s.Equal(models.EventTypeMusic, event.Type)
}

func (s *apiSuite) TestInvalidToken() {
	resp, _ := s.do(request{method: "GET", path: "/api/events", token: "garbage"})
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	other, err := auth.NewVerifier("other-secret", "").Issue(service.Identity{UserID: "u"}, time.Hour)
	s.Require().NoError(err)
	resp, _ = s.do(request{method: "GET", path: "/api/events", token: other})
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *apiSuite) TestCreateEventValidation() {
	editor := s.signIn("editor", models.RoleEditor)

	body := eventBody("", "2023-05-10T19:00:00Z")
	resp, out := s.do(request{method: "POST", path: "/api/events", body: body, token: editor})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Contains(string(out), "title")

	body = eventBody("Show", "2023-05-10T19:00:00Z")
	body["type"] = "Music"
	resp, out = s.do(request{method: "POST", path: "/api/events", body: body, token: editor})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Contains(string(out), "event_type")

	resp, _ = s.do(request{method: "POST", path: "/api/events", body: "not an object", token: editor})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *apiSuite) TestUpdateAndDeleteEvent() {
	editor := s.signIn("editor", models.RoleEditor)
	id := s.createEvent(editor, "Show", "2023-05-10T19:00:00Z")

	resp, body := s.do(request{method: "PUT", path: "/api/events/" + id, body: map[string]any{"title": "Renamed", "isFeatured": true}, token: editor})
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))
	var event models.Event
	s.decodeBody(body, &event)
	s.Equal("Renamed", event.Title)
	s.True(event.IsFeatured)
	s.Equal("Teatro Municipal", event.Location)

	resp, _ = s.do(request{method: "PUT", path: "/api/events/" + id, body: map[string]any{"title": ""}, token: editor})
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(request{method: "PUT", path: "/api/events/missing", body: map[string]any{"title": "X"}, token: editor})
	s.Equal(http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(request{method: "DELETE", path: "/api/events/" + id, token: editor})
	s.Equal(http.StatusNoContent, resp.StatusCode)

	resp, _ = s.do(request{method: "GET", path: "/api/events/" + id})
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *apiSuite) TestListEventsByYear() {
	editor := s.signIn("editor", models.RoleEditor)
	s.createEvent(editor, "Old", "1999-03-01T20:00:00Z")
	s.createEvent(editor, "New A", "2023-05-10T19:00:00Z")
	s.createEvent(editor, "New B", "2023-11-02T19:00:00Z")

	resp, body := s.do(request{method: "GET", path: "/api/events?year=2023"})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var events []models.Event
	s.decodeBody(body, &events)
	s.Len(events, 2)
	for _, e := range events {
		s.Equal(2023, e.Date.Year())
	}

	resp, body = s.do(request{method: "GET", path: "/api/events?limit=1"})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.decodeBody(body, &events)
	s.Len(events, 1)

	resp, _ = s.do(request{method: "GET", path: "/api/events?limit=-1"})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	resp, _ = s.do(request{method: "GET", path: "/api/events?year=abc"})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *apiSuite) TestLikes() {
	editor := s.signIn("editor", models.RoleEditor)
	id := s.createEvent(editor, "Show", "2023-05-10T19:00:00Z")
	viewer := s.signIn("viewer", models.RoleViewer)
	like := map[string]any{"itemId": id, "itemType": "event"}

	resp, _ := s.do(request{method: "POST", path: "/api/likes", body: like})
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(request{method: "POST", path: "/api/likes", body: like, token: viewer})
	s.Equal(http.StatusCreated, resp.StatusCode)
	resp, _ = s.do(request{method: "POST", path: "/api/likes", body: like, token: viewer})
	s.Equal(http.StatusConflict, resp.StatusCode)

	var liked map[string]bool
	resp, body := s.do(request{method: "GET", path: "/api/likes/event/" + id, token: viewer})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.decodeBody(body, &liked)
	s.True(liked["liked"])

	event, err := s.app.events.GetByID(s.ctx, id)
	s.Require().NoError(err)
	s.EqualValues(1, event.Likes)

	resp, body = s.do(request{method: "GET", path: "/api/users/me/likes", token: viewer})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var likes []models.Like
	s.decodeBody(body, &likes)
	s.Require().Len(likes, 1)
	s.Equal(id, likes[0].ItemID)

	resp, _ = s.do(request{method: "DELETE", path: "/api/likes", body: like, token: viewer})
	s.Equal(http.StatusOK, resp.StatusCode)
	event, err = s.app.events.GetByID(s.ctx, id)
	s.Require().NoError(err)
	s.EqualValues(0, event.Likes)

	toggle := map[string]any{"itemId": id, "itemType": "event", "toggle": true}
	resp, body = s.do(request{method: "POST", path: "/api/likes", body: toggle, token: viewer})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.decodeBody(body, &liked)
	s.True(liked["liked"])
}

func (s *apiSuite) TestLikeRejectsUnknownItem() {
	viewer := s.signIn("viewer", models.RoleViewer)

	resp, _ := s.do(request{method: "POST", path: "/api/likes", body: map[string]any{"itemId": "x", "itemType": "page"}, token: viewer})
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(request{method: "POST", path: "/api/likes", body: map[string]any{"itemId": "missing", "itemType": "event"}, token: viewer})
	s.Equal(http.StatusNotFound, resp.StatusCode)
	s.Equal(0, s.store.Count(models.CollectionLikes), "a failed like leaves no row behind")

	resp, _ = s.do(request{method: "GET", path: "/api/likes/page/x", token: viewer})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *apiSuite) TestViewsCountOncePerSession() {
	editor := s.signIn("editor", models.RoleEditor)
	id := s.createEvent(editor, "Show", "2023-05-10T19:00:00Z")
	view := map[string]any{"itemId": id, "itemType": "event"}

	var counted map[string]bool
	resp, body := s.do(request{method: "POST", path: "/api/views", body: view, session: "session1"})
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))
	s.decodeBody(body, &counted)
	s.True(counted["counted"])

	_, body = s.do(request{method: "POST", path: "/api/views", body: view, session: "session1"})
	s.decodeBody(body, &counted)
	s.False(counted["counted"])

	_, body = s.do(request{method: "POST", path: "/api/views", body: view, session: "session2"})
	s.decodeBody(body, &counted)
	s.True(counted["counted"])

	event, err := s.app.events.GetByID(s.ctx, id)
	s.Require().NoError(err)
	s.EqualValues(2, event.Views)
}

func (s *apiSuite) TestReadOnlyRejectsWrites() {
	admin := s.signIn("admin", models.RoleAdmin)
	editor := s.signIn("editor", models.RoleEditor)
	id := s.createEvent(editor, "Show", "2023-05-10T19:00:00Z")

	resp, _ := s.do(request{method: "POST", path: "/api/admin/read-only", body: map[string]any{"readOnly": true}, token: editor})
	s.Equal(http.StatusForbidden, resp.StatusCode)

	resp, body := s.do(request{method: "POST", path: "/api/admin/read-only", body: map[string]any{"readOnly": true}, token: admin})
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))
	s.True(s.app.IsReadOnly())

	resp, _ = s.do(request{method: "POST", path: "/api/events", body: eventBody("Blocked", "2023-05-10T19:00:00Z"), token: editor})
	s.Equal(http.StatusServiceUnavailable, resp.StatusCode)

	resp, _ = s.do(request{method: "GET", path: "/api/events/" + id})
	s.Equal(http.StatusOK, resp.StatusCode, "reads keep working")

	resp, _ = s.do(request{method: "POST", path: "/api/admin/read-only", body: map[string]any{}, token: admin})
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(request{method: "POST", path: "/api/admin/read-only", body: map[string]any{"readOnly": false}, token: admin})
	s.Equal(http.StatusOK, resp.StatusCode)
	s.createEvent(editor, "Allowed", "2023-05-10T19:00:00Z")
}

func (s *apiSuite) TestModeRequiresCQRS() {
	admin := s.signIn("admin", models.RoleAdmin)

	resp, body := s.do(request{method: "GET", path: "/api/admin/mode", token: admin})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var mode map[string]string
	s.decodeBody(body, &mode)
	s.Equal("single", mode["mode"])

	resp, _ = s.do(request{method: "POST", path: "/api/admin/mode", body: map[string]any{"mode": "switching"}, token: admin})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *apiSuite) TestUsersAdministration() {
	admin := s.signIn("admin", models.RoleAdmin)
	s.signIn("viewer", models.RoleViewer)

	resp, body := s.do(request{method: "GET", path: "/api/users", token: admin})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var users []models.User
	s.decodeBody(body, &users)
	s.Len(users, 2)

	resp, body = s.do(request{method: "PUT", path: "/api/users/viewer/role", body: map[string]any{"role": "editor"}, token: admin})
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))
	var user models.User
	s.decodeBody(body, &user)
	s.Equal(models.RoleEditor, user.Role)

	resp, _ = s.do(request{method: "PUT", path: "/api/users/viewer/role", body: map[string]any{"role": "owner"}, token: admin})
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(request{method: "PUT", path: "/api/users/missing/role", body: map[string]any{"role": "editor"}, token: admin})
	s.Equal(http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(request{method: "DELETE", path: "/api/users/admin", token: admin})
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(request{method: "DELETE", path: "/api/users/viewer", token: admin})
	s.Equal(http.StatusNoContent, resp.StatusCode)
	resp, _ = s.do(request{method: "GET", path: "/api/users/viewer", token: admin})
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *apiSuite) TestMe() {
	token, err := s.verifier.Issue(service.Identity{UserID: "new", Email: "new@example.com", DisplayName: "New"}, time.Hour)
	s.Require().NoError(err)

	resp, body := s.do(request{method: "GET", path: "/api/auth/me", token: token})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var user models.User
	s.decodeBody(body, &user)
	s.Equal("new", user.ID)
	s.Equal("new@example.com", user.Email)
	s.Equal(models.RoleViewer, user.Role)
}

func (s *apiSuite) TestStatistics() {
	editor := s.signIn("editor", models.RoleEditor)
	s.createEvent(editor, "Show", "2023-05-10T19:00:00Z")

	resp, body := s.do(request{method: "GET", path: "/api/statistics"})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var stats models.Statistics
	s.decodeBody(body, &stats)
	s.Equal(1, stats.TotalEvents)
	s.Equal(1, stats.TotalUsers)
	s.Equal(1, stats.EventsByType[models.EventTypeMusic])

	admin := s.signIn("admin", models.RoleAdmin)
	resp, body = s.do(request{method: "POST", path: "/api/statistics/refresh", token: admin})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.decodeBody(body, &stats)
	s.Equal(2, stats.TotalUsers)

	resp, body = s.do(request{method: "GET", path: "/api/admin/dashboard", token: admin})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var dash map[string]any
	s.decodeBody(body, &dash)
	s.EqualValues(2, dash["users"])
	s.Len(dash["recentEvents"], 1)
}

func (s *apiSuite) TestGalleryDeleteRemovesAsset() {
	editor := s.signIn("editor", models.RoleEditor)
	item := map[string]any{
		"title":   "Foto",
		"type":    "image",
		"url":     "https://cdn.example.com/gallery/" + testAsset,
		"year":    2023,
		"assetId": "gallery/" + testAsset,
	}
	resp, body := s.do(request{method: "POST", path: "/api/gallery", body: item, token: editor})
	s.Require().Equal(http.StatusCreated, resp.StatusCode, string(body))
	var created models.GalleryItem
	s.decodeBody(body, &created)

	resp, _ = s.do(request{method: "DELETE", path: "/api/gallery/" + created.ID, token: editor})
	s.Equal(http.StatusNoContent, resp.StatusCode)
	s.Equal([]string{"gallery/" + testAsset}, s.uploader.deleted)
}

func (s *apiSuite) TestGalleryRejectsForeignAssetIDs() {
	editor := s.signIn("editor", models.RoleEditor)
	item := map[string]any{
		"title":   "Foto",
		"type":    "image",
		"url":     "https://cdn.example.com/private/report.pdf",
		"year":    2023,
		"assetId": "private/report.pdf",
	}
	resp, body := s.do(request{method: "POST", path: "/api/gallery", body: item, token: editor})
	s.Equal(http.StatusBadRequest, resp.StatusCode, string(body))

	item["assetId"] = "gallery/" + testAsset
	resp, body = s.do(request{method: "POST", path: "/api/gallery", body: item, token: editor})
	s.Require().Equal(http.StatusCreated, resp.StatusCode, string(body))
	var created models.GalleryItem
	s.decodeBody(body, &created)

	resp, body = s.do(request{method: "PUT", path: "/api/gallery/" + created.ID, body: map[string]any{"assetId": "../backups/db.sql"}, token: editor})
	s.Equal(http.StatusBadRequest, resp.StatusCode, string(body))

	s.Require().NoError(s.store.Update(s.ctx, models.CollectionGallery, created.ID, map[string]any{"assetId": "private/report.pdf"}))
	resp, _ = s.do(request{method: "DELETE", path: "/api/gallery/" + created.ID, token: editor})
	s.Equal(http.StatusNoContent, resp.StatusCode)
	s.Empty(s.uploader.deleted)
}

func (s *apiSuite) TestUpload() {
	editor := s.signIn("editor", models.RoleEditor)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	s.Require().NoError(mw.WriteField("folder", "events"))
	fw, err := mw.CreateFormFile("file", "photo.jpg")
	s.Require().NoError(err)
	_, err = fw.Write([]byte("jpeg bytes"))
	s.Require().NoError(err)
	s.Require().NoError(mw.Close())

	req, err := http.NewRequest("POST", s.server.URL+"/api/uploads", &buf)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+editor)
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	var result media.Result
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&result))
	s.Equal("events/"+testAsset, result.AssetID)
	s.EqualValues(len("jpeg bytes"), result.Bytes)
	s.Require().Len(s.uploader.uploaded, 1)
	s.Equal("photo.jpg", s.uploader.uploaded[0].Name)
}

func (s *apiSuite) TestUploadBadFolder() {
	editor := s.signIn("editor", models.RoleEditor)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	s.Require().NoError(mw.WriteField("folder", "../etc"))
	fw, err := mw.CreateFormFile("file", "photo.jpg")
	s.Require().NoError(err)
	_, err = fw.Write([]byte("x"))
	s.Require().NoError(err)
	s.Require().NoError(mw.Close())

	req, err := http.NewRequest("POST", s.server.URL+"/api/uploads", &buf)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+editor)
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Empty(s.uploader.uploaded)
}

func (s *apiSuite) TestMetricsEndpoint() {
	s.do(request{method: "GET", path: "/api/events"})

	resp, body := s.do(request{method: "GET", path: "/metrics"})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.True(strings.Contains(string(body), `acervo_http_requests_total{method="GET",route="/api/events",status="200"} 1`), string(body))
	s.Contains(string(body), `acervo_store_operations_total{op="find",result="ok"}`)
}

func TestUploadsDisabled(t *testing.T) {
	app := NewWithStore(&Config{Backend: BackendMemory, JWTSecret: testSecret}, memory.New(), Options{Logger: zerolog.Nop()})
	defer app.Close()

	id := service.Identity{UserID: "editor"}
	_, err := app.users.EnsureProfile(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if err := app.users.SetRole(context.Background(), "editor", models.RoleEditor); err != nil {
		t.Fatal(err)
	}
	token, err := auth.NewVerifier(testSecret, "").Issue(id, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("POST", "/api/uploads", strings.NewReader(""))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
