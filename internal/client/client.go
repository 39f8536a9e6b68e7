// Package client is the HTTP client for the soilnet server. It implements
// signup.Backend so the registration orchestrator can run against a live
// server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/marcus/soilnet/internal/signup"
)

// Sentinel errors for common HTTP error classes.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
)

// Client is an HTTP client for the soilnet server.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// New creates a new client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 60 * time.Second},
	}
}

// --- Types (mirror internal/api, independently defined) ---

// AuthResponse is returned by signup and login.
type AuthResponse struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	APIKey    string `json:"api_key"`
	ExpiresAt string `json:"expires_at"`
}

// Profile is a user's profile row.
type Profile struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id"`
	FullName    string  `json:"full_name"`
	Phone       string  `json:"phone"`
	Role        string  `json:"role"`
	AvatarURL   string  `json:"avatar_url,omitempty"`
	FinalizedAt *string `json:"finalized_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

// MeResponse is returned by GET /v1/auth/me.
type MeResponse struct {
	UserID  string   `json:"user_id"`
	Email   string   `json:"email"`
	Role    string   `json:"role"`
	Profile *Profile `json:"profile,omitempty"`
}

// Farmer is a farmer record managed by a consultant.
type Farmer struct {
	ID            string  `json:"id"`
	UserID        string  `json:"user_id,omitempty"`
	FullName      string  `json:"full_name"`
	Email         string  `json:"email"`
	Phone         string  `json:"phone,omitempty"`
	Country       string  `json:"country,omitempty"`
	Province      string  `json:"province,omitempty"`
	City          string  `json:"city,omitempty"`
	Address       string  `json:"address,omitempty"`
	FarmName      string  `json:"farm_name,omitempty"`
	FarmSizeAcres float64 `json:"farm_size_acres,omitempty"`
	Crops         string  `json:"crops,omitempty"`
	ConsultantID  string  `json:"consultant_id,omitempty"`
	CreatedAt     string  `json:"created_at,omitempty"`
	UpdatedAt     string  `json:"updated_at,omitempty"`
}

// FarmerList is one page of farmers.
type FarmerList struct {
	Data   []Farmer `json:"data"`
	Total  int      `json:"total"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
}

// FarmerUpdate holds the fields to change; nil fields are left alone.
type FarmerUpdate struct {
	FullName      *string  `json:"full_name,omitempty"`
	Phone         *string  `json:"phone,omitempty"`
	Country       *string  `json:"country,omitempty"`
	Province      *string  `json:"province,omitempty"`
	City          *string  `json:"city,omitempty"`
	Address       *string  `json:"address,omitempty"`
	FarmName      *string  `json:"farm_name,omitempty"`
	FarmSizeAcres *float64 `json:"farm_size_acres,omitempty"`
	Crops         *string  `json:"crops,omitempty"`
}

// Notification is an inbox entry.
type Notification struct {
	ID        string  `json:"id"`
	Kind      string  `json:"kind"`
	Title     string  `json:"title"`
	Body      string  `json:"body,omitempty"`
	ReadAt    *string `json:"read_at,omitempty"`
	CreatedAt string  `json:"created_at"`
}

// NotificationList is a page of notifications with the unread count.
type NotificationList struct {
	Data   []Notification `json:"data"`
	Unread int            `json:"unread"`
}

// SoilResult is one soil image classification.
type SoilResult struct {
	ID            string             `json:"id"`
	FarmerID      string             `json:"farmer_id"`
	SubmittedBy   string             `json:"submitted_by"`
	ImageURL      string             `json:"image_url"`
	Label         string             `json:"label"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
	CreatedAt     time.Time          `json:"created_at"`
}

// HealthResponse is the response from GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthCheck hits the /healthz endpoint to verify server reachability.
func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doNoAuth(ctx, "GET", "/healthz", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Auth and registration (signup.Backend) ---

// EmailExists reports whether an account uses email.
func (c *Client) EmailExists(ctx context.Context, email string) (bool, error) {
	var resp struct {
		Exists bool `json:"exists"`
	}
	if err := c.doNoAuth(ctx, "GET", "/v1/auth/exists?email="+url.QueryEscape(email), nil, &resp); err != nil {
		return false, err
	}
	return resp.Exists, nil
}

// SignUp creates an account.
func (c *Client) SignUp(ctx context.Context, req signup.SignUpRequest) (*signup.Identity, error) {
	meta := map[string]string{}
	for k, v := range req.Metadata {
		if v != "" {
			meta[k] = v
		}
	}
	body := map[string]any{
		"email":    req.Email,
		"password": req.Password,
		"role":     string(req.Role),
		"metadata": meta,
	}
	var resp AuthResponse
	if err := c.doNoAuth(ctx, "POST", "/v1/auth/signup", body, &resp); err != nil {
		return nil, err
	}
	return &signup.Identity{UserID: resp.UserID, Email: resp.Email, APIKey: resp.APIKey}, nil
}

// Authenticate makes later calls use the identity's API key.
func (c *Client) Authenticate(id *signup.Identity) {
	if id != nil {
		c.APIKey = id.APIKey
	}
}

// Login exchanges email and password for an API key.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var resp AuthResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.doNoAuth(ctx, "POST", "/v1/auth/login", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*MeResponse, error) {
	var resp MeResponse
	if err := c.do(ctx, "GET", "/v1/auth/me", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FindProfile returns the user's profile, or (nil, nil) while it does not
// exist yet.
func (c *Client) FindProfile(ctx context.Context, userID string) (*signup.Profile, error) {
	var p Profile
	err := c.do(ctx, "GET", "/v1/profiles/"+url.PathEscape(userID), nil, &p)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &signup.Profile{ID: p.ID, UserID: p.UserID}, nil
}

// Upload sends local files as one multipart request and returns their
// public URLs keyed by field.
func (c *Client) Upload(ctx context.Context, req signup.UploadRequest) (map[string]string, error) {
	fields := map[string]string{"profile_id": req.ProfileID, "user_id": req.UserID}
	var resp struct {
		URLs map[string]string `json:"urls"`
	}
	if err := c.doMultipart(ctx, "/v1/uploads", fields, req.Files, &resp); err != nil {
		return nil, err
	}
	return resp.URLs, nil
}

// Finalize creates the role record for a registered profile.
func (c *Client) Finalize(ctx context.Context, req signup.FinalizeRequest) error {
	body := map[string]any{
		"user_id":    req.UserID,
		"profile_id": req.ProfileID,
		"location":   req.Location,
		"details":    req.Details,
		"documents":  req.Documents,
	}
	return c.do(ctx, "POST", "/v1/signup/finalize", body, nil)
}

// --- Farmers ---

// ListFarmers lists the consultant's farmers matching q.
func (c *Client) ListFarmers(ctx context.Context, q string, limit, offset int) (*FarmerList, error) {
	v := url.Values{}
	if q != "" {
		v.Set("q", q)
	}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		v.Set("offset", strconv.Itoa(offset))
	}
	path := "/v1/farmers"
	if len(v) > 0 {
		path += "?" + v.Encode()
	}
	var resp FarmerList
	if err := c.do(ctx, "GET", path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateFarmer adds a farmer.
func (c *Client) CreateFarmer(ctx context.Context, f Farmer) (*Farmer, error) {
	var resp Farmer
	if err := c.do(ctx, "POST", "/v1/farmers", f, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetFarmer returns one farmer.
func (c *Client) GetFarmer(ctx context.Context, id string) (*Farmer, error) {
	var resp Farmer
	if err := c.do(ctx, "GET", "/v1/farmers/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateFarmer patches a farmer.
func (c *Client) UpdateFarmer(ctx context.Context, id string, u FarmerUpdate) (*Farmer, error) {
	var resp Farmer
	if err := c.do(ctx, "PATCH", "/v1/farmers/"+url.PathEscape(id), u, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteFarmer removes a farmer.
func (c *Client) DeleteFarmer(ctx context.Context, id string) error {
	return c.do(ctx, "DELETE", "/v1/farmers/"+url.PathEscape(id), nil, nil)
}

// --- Notifications ---

// ListNotifications returns the inbox.
func (c *Client) ListNotifications(ctx context.Context, unreadOnly bool) (*NotificationList, error) {
	path := "/v1/notifications"
	if unreadOnly {
		path += "?unread=true"
	}
	var resp NotificationList
	if err := c.do(ctx, "GET", path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MarkNotificationRead marks one notification read.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.do(ctx, "POST", "/v1/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}

// MarkAllNotificationsRead marks the whole inbox read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) (int64, error) {
	var resp struct {
		Updated int64 `json:"updated"`
	}
	if err := c.do(ctx, "POST", "/v1/notifications/read-all", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

// DeleteNotification removes a notification.
func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	return c.do(ctx, "DELETE", "/v1/notifications/"+url.PathEscape(id), nil, nil)
}

// --- Soil ---

// Classify uploads a soil image for farmerID (empty for a farmer's own
// record) and returns the stored result.
func (c *Client) Classify(ctx context.Context, farmerID, imagePath string) (*SoilResult, error) {
	fields := map[string]string{}
	if farmerID != "" {
		fields["farmer_id"] = farmerID
	}
	var resp SoilResult
	if err := c.doMultipart(ctx, "/v1/soil/classify", fields, map[string]string{"image": imagePath}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListSoilResults lists results, optionally for one farmer.
func (c *Client) ListSoilResults(ctx context.Context, farmerID string) ([]SoilResult, error) {
	path := "/v1/soil/results"
	if farmerID != "" {
		path += "?farmer_id=" + url.QueryEscape(farmerID)
	}
	var resp struct {
		Data []SoilResult `json:"data"`
	}
	if err := c.do(ctx, "GET", path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetSoilResult returns one result.
func (c *Client) GetSoilResult(ctx context.Context, id string) (*SoilResult, error) {
	var resp SoilResult
	if err := c.do(ctx, "GET", "/v1/soil/results/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- HTTP helpers ---

// APIError is the standard error body from the server.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

// ServerMessage returns the message written by the server for the user.
func (e *APIError) ServerMessage() string { return e.Message }

// Unwrap maps the status to a sentinel error.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	}
	return nil
}

// do executes an authenticated HTTP request.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	return c.doRequest(ctx, method, path, body, result, true)
}

// doNoAuth executes an unauthenticated HTTP request.
func (c *Client) doNoAuth(ctx context.Context, method, path string, body, result any) error {
	return c.doRequest(ctx, method, path, body, result, false)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, result any, auth bool) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth && c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	return c.send(req, result)
}

// doMultipart posts fields plus the local files (field -> path).
func (c *Client) doMultipart(ctx context.Context, path string, fields, files map[string]string, result any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("write field %s: %w", k, err)
		}
	}
	for field, p := range files {
		if err := addFile(mw, field, p); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	return c.send(req, result)
}

func addFile(mw *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", field, err)
	}
	defer f.Close()
	w, err := mw.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("read %s: %w", field, err)
	}
	return nil
}

func (c *Client) send(req *http.Request, result any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var env struct {
			Error APIError `json:"error"`
		}
		if json.Unmarshal(respBody, &env) == nil && env.Error.Code != "" {
			env.Error.Status = resp.StatusCode
			return &env.Error
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
