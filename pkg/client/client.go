// Package client is a Go client for the acervo HTTP API.
//
// It is used by integration tools and the end-to-end tests. Requests and
// responses use the same [models] types as the server. A [Client] remembers
// the browsing-session id the server assigns, so views counted through one
// client are de-duplicated like a single browser tab.
//
//	c := client.New("http://localhost:8080")
//	c.SetAuthToken(token)
//	events, err := c.ListEvents(ctx, client.ListOptions{Year: 2023})
//
// Errors for non-2xx responses are [*APIError] values carrying the status code.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/acervo-cultural/acervo/pkg/media"
	"github.com/acervo-cultural/acervo/pkg/models"
)

const sessionHeader = "X-Session-ID"

// APIError is returned for responses with a status of 400 or above.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: status=%d, message=%s", e.StatusCode, e.Message)
}

// Client provides typed access to the acervo API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu        sync.RWMutex
	authToken string
	sessionID string
}

// New creates a client for baseURL, e.g. "http://localhost:8080", with a
// 30-second request timeout.
func New(baseURL string) *Client {
	return NewWithHTTPClient(baseURL, &http.Client{Timeout: 30 * time.Second})
}

// NewWithHTTPClient creates a client using hc for all requests.
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: hc}
}

// SetAuthToken sets the bearer token sent with every request. An empty token
// makes the client anonymous.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	c.authToken = token
	c.mu.Unlock()
}

// SessionID returns the browsing-session id assigned by the server, if any.
func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// SetSessionID makes the client continue an existing browsing session.
func (c *Client) SetSessionID(id string) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req)
}

// send adds the auth and session headers and remembers the session id the
// server returns.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	req.Header.Set("Accept", "application/json")
	c.mu.RLock()
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	if c.sessionID != "" {
		req.Header.Set(sessionHeader, c.sessionID)
	}
	c.mu.RUnlock()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if id := resp.Header.Get(sessionHeader); id != "" {
		c.mu.Lock()
		if c.sessionID == "" {
			c.sessionID = id
		}
		c.mu.Unlock()
	}
	return resp, nil
}

// decodeResponse decodes the JSON response into target, or turns an error
// status into an *APIError.
func decodeResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		var payload struct {
			Error string `json:"error"`
		}
		msg := string(body)
		if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
			msg = payload.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if target != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// call performs a request and decodes the response into a new T.
func call[T any](ctx context.Context, c *Client, method, path string, body any) (T, error) {
	var result T
	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return result, err
	}
	err = decodeResponse(resp, &result)
	return result, err
}

func (c *Client) exec(ctx context.Context, method, path string, body any) error {
	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	return decodeResponse(resp, nil)
}

// ListOptions filters list endpoints. Zero fields are not sent.
type ListOptions struct {
	Year     int
	Category string
	Type     string
	EventID  string
	Limit    int
}

func (o ListOptions) encode() string {
	v := url.Values{}
	if o.Year != 0 {
		v.Set("year", strconv.Itoa(o.Year))
	}
	if o.Category != "" {
		v.Set("category", o.Category)
	}
	if o.Type != "" {
		v.Set("type", o.Type)
	}
	if o.EventID != "" {
		v.Set("eventId", o.EventID)
	}
	if o.Limit > 0 {
		v.Set("limit", strconv.Itoa(o.Limit))
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

func itemPath(collection, id string) string {
	return "/api/" + collection + "/" + url.PathEscape(id)
}

// Health returns the server health report.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	return call[map[string]any](ctx, c, http.MethodGet, "/health", nil)
}

// Me returns the caller's profile, creating it on first sign-in.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	return call[*models.User](ctx, c, http.MethodGet, "/api/auth/me", nil)
}

// Events

func (c *Client) ListEvents(ctx context.Context, opts ListOptions) ([]models.Event, error) {
	return call[[]models.Event](ctx, c, http.MethodGet, "/api/events"+opts.encode(), nil)
}

func (c *Client) FeaturedEvents(ctx context.Context, limit int) ([]models.Event, error) {
	return call[[]models.Event](ctx, c, http.MethodGet, "/api/events/featured"+ListOptions{Limit: limit}.encode(), nil)
}

func (c *Client) HighlightedEvents(ctx context.Context, limit int) ([]models.Event, error) {
	return call[[]models.Event](ctx, c, http.MethodGet, "/api/events/highlighted"+ListOptions{Limit: limit}.encode(), nil)
}

func (c *Client) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	return call[*models.Event](ctx, c, http.MethodGet, itemPath("events", id), nil)
}

// EventGallery returns the gallery items attached to an event.
func (c *Client) EventGallery(ctx context.Context, id string) ([]models.GalleryItem, error) {
	return call[[]models.GalleryItem](ctx, c, http.MethodGet, itemPath("events", id)+"/gallery", nil)
}

// CreateEvent creates an event and returns it as stored. Counters, id and
// timestamps of e are ignored by the server.
func (c *Client) CreateEvent(ctx context.Context, e models.Event) (*models.Event, error) {
	return call[*models.Event](ctx, c, http.MethodPost, "/api/events", e)
}

func (c *Client) UpdateEvent(ctx context.Context, id string, patch models.EventPatch) (*models.Event, error) {
	return call[*models.Event](ctx, c, http.MethodPut, itemPath("events", id), patch)
}

func (c *Client) DeleteEvent(ctx context.Context, id string) error {
	return c.exec(ctx, http.MethodDelete, itemPath("events", id), nil)
}

// Gallery

func (c *Client) ListGallery(ctx context.Context, opts ListOptions) ([]models.GalleryItem, error) {
	return call[[]models.GalleryItem](ctx, c, http.MethodGet, "/api/gallery"+opts.encode(), nil)
}

func (c *Client) HighlightedGallery(ctx context.Context, limit int) ([]models.GalleryItem, error) {
	return call[[]models.GalleryItem](ctx, c, http.MethodGet, "/api/gallery/highlighted"+ListOptions{Limit: limit}.encode(), nil)
}

func (c *Client) GetGalleryItem(ctx context.Context, id string) (*models.GalleryItem, error) {
	return call[*models.GalleryItem](ctx, c, http.MethodGet, itemPath("gallery", id), nil)
}

func (c *Client) CreateGalleryItem(ctx context.Context, item models.GalleryItem) (*models.GalleryItem, error) {
	return call[*models.GalleryItem](ctx, c, http.MethodPost, "/api/gallery", item)
}

func (c *Client) UpdateGalleryItem(ctx context.Context, id string, patch models.GalleryPatch) (*models.GalleryItem, error) {
	return call[*models.GalleryItem](ctx, c, http.MethodPut, itemPath("gallery", id), patch)
}

func (c *Client) DeleteGalleryItem(ctx context.Context, id string) error {
	return c.exec(ctx, http.MethodDelete, itemPath("gallery", id), nil)
}

// Timeline

func (c *Client) ListTimeline(ctx context.Context, opts ListOptions) ([]models.TimelineEvent, error) {
	return call[[]models.TimelineEvent](ctx, c, http.MethodGet, "/api/timeline"+opts.encode(), nil)
}

// TimelineYears returns the distinct years present on the timeline.
func (c *Client) TimelineYears(ctx context.Context) ([]int, error) {
	return call[[]int](ctx, c, http.MethodGet, "/api/timeline/years", nil)
}

func (c *Client) GetTimelineEvent(ctx context.Context, id string) (*models.TimelineEvent, error) {
	return call[*models.TimelineEvent](ctx, c, http.MethodGet, itemPath("timeline", id), nil)
}

func (c *Client) CreateTimelineEvent(ctx context.Context, e models.TimelineEvent) (*models.TimelineEvent, error) {
	return call[*models.TimelineEvent](ctx, c, http.MethodPost, "/api/timeline", e)
}

func (c *Client) UpdateTimelineEvent(ctx context.Context, id string, patch models.TimelinePatch) (*models.TimelineEvent, error) {
	return call[*models.TimelineEvent](ctx, c, http.MethodPut, itemPath("timeline", id), patch)
}

func (c *Client) DeleteTimelineEvent(ctx context.Context, id string) error {
	return c.exec(ctx, http.MethodDelete, itemPath("timeline", id), nil)
}

// Upload sends a media file as multipart form data. folder may be empty.
func (c *Client) Upload(ctx context.Context, name string, body io.Reader, folder string) (*media.Result, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if folder != "" {
		if err := mw.WriteField("folder", folder); err != nil {
			return nil, err
		}
	}
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, body); err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/uploads", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	var result media.Result
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Engagement

type itemRef struct {
	ItemID   string          `json:"itemId"`
	ItemType models.ItemType `json:"itemType"`
	Toggle   bool            `json:"toggle,omitempty"`
}

// AddView counts a view for the client's session. It reports whether the
// view was counted; a repeated view in the same session is not.
func (c *Client) AddView(ctx context.Context, itemID string, itemType models.ItemType) (bool, error) {
	res, err := call[map[string]bool](ctx, c, http.MethodPost, "/api/views", itemRef{ItemID: itemID, ItemType: itemType})
	return res["counted"], err
}

func (c *Client) Like(ctx context.Context, itemID string, itemType models.ItemType) error {
	return c.exec(ctx, http.MethodPost, "/api/likes", itemRef{ItemID: itemID, ItemType: itemType})
}

func (c *Client) Unlike(ctx context.Context, itemID string, itemType models.ItemType) error {
	return c.exec(ctx, http.MethodDelete, "/api/likes", itemRef{ItemID: itemID, ItemType: itemType})
}

// ToggleLike flips the like and returns whether the item is liked afterwards.
func (c *Client) ToggleLike(ctx context.Context, itemID string, itemType models.ItemType) (bool, error) {
	res, err := call[map[string]bool](ctx, c, http.MethodPost, "/api/likes", itemRef{ItemID: itemID, ItemType: itemType, Toggle: true})
	return res["liked"], err
}

func (c *Client) IsLiked(ctx context.Context, itemID string, itemType models.ItemType) (bool, error) {
	path := "/api/likes/" + url.PathEscape(string(itemType)) + "/" + url.PathEscape(itemID)
	res, err := call[map[string]bool](ctx, c, http.MethodGet, path, nil)
	return res["liked"], err
}

func (c *Client) MyLikes(ctx context.Context) ([]models.Like, error) {
	return call[[]models.Like](ctx, c, http.MethodGet, "/api/users/me/likes", nil)
}

// Administration

func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	return call[[]models.User](ctx, c, http.MethodGet, "/api/users", nil)
}

func (c *Client) SetRole(ctx context.Context, userID string, role models.Role) (*models.User, error) {
	return call[*models.User](ctx, c, http.MethodPut, itemPath("users", userID)+"/role", map[string]models.Role{"role": role})
}

func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	return c.exec(ctx, http.MethodDelete, itemPath("users", userID), nil)
}

func (c *Client) Statistics(ctx context.Context) (*models.Statistics, error) {
	return call[*models.Statistics](ctx, c, http.MethodGet, "/api/statistics", nil)
}

func (c *Client) RefreshStatistics(ctx context.Context) (*models.Statistics, error) {
	return call[*models.Statistics](ctx, c, http.MethodPost, "/api/statistics/refresh", nil)
}

// GetMode returns the current migration mode.
func (c *Client) GetMode(ctx context.Context) (string, error) {
	res, err := call[map[string]string](ctx, c, http.MethodGet, "/api/admin/mode", nil)
	return res["mode"], err
}

// SetMode changes the migration mode of a cqrs deployment.
func (c *Client) SetMode(ctx context.Context, mode string) error {
	return c.exec(ctx, http.MethodPost, "/api/admin/mode", map[string]string{"mode": mode})
}

func (c *Client) SetReadOnly(ctx context.Context, readOnly bool) error {
	return c.exec(ctx, http.MethodPost, "/api/admin/read-only", map[string]bool{"readOnly": readOnly})
}
