package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/marcus/soilnet/internal/inference"
	"github.com/marcus/soilnet/internal/serverdb"
	"github.com/marcus/soilnet/internal/storage"
)

// fakeClassifier returns a fixed prediction and records the images it saw.
type fakeClassifier struct {
	mu     sync.Mutex
	pred   *inference.Prediction
	err    error
	images [][]byte
}

func (f *fakeClassifier) Classify(_ context.Context, _ string, img []byte) (*inference.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images = append(f.images, img)
	if f.err != nil {
		return nil, f.err
	}
	return f.pred, nil
}

func (f *fakeClassifier) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeClassifier) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.images)
}

// TestHarness wraps a full Server with a real HTTP listener for integration tests.
type TestHarness struct {
	t          *testing.T
	Server     *Server
	Store      *serverdb.ServerDB
	Files      *storage.Store
	Classifier *fakeClassifier
	BaseURL    string
	client     *http.Client
	httpSrv    *httptest.Server
}

// newTestHarness creates a TestHarness with a real HTTP server on a random port.
func newTestHarness(t *testing.T, opts ...func(*Config)) *TestHarness {
	t.Helper()

	tmpDir := t.TempDir()

	dbPath := filepath.Join(tmpDir, "server.db")
	store, err := serverdb.Open(dbPath)
	if err != nil {
		t.Fatalf("open server db: %v", err)
	}

	files, err := storage.New(filepath.Join(tmpDir, "files"), "http://files.test/files")
	if err != nil {
		t.Fatalf("open file store: %v", err)
	}

	cfg := Config{
		RateLimitAuth:  100000,
		RateLimitOther: 100000,
		ListenAddr:     ":0",
		ServerDBPath:   dbPath,
		StorageDir:     files.Root(),
		AllowSignup:    true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	classifier := &fakeClassifier{pred: &inference.Prediction{
		Class:         "Black Soil",
		Confidence:    0.91,
		Probabilities: map[string]float64{"Black Soil": 0.91, "Red Soil": 0.06, "Clay Soil": 0.03},
	}}

	srv, err := NewServer(cfg, store, files, classifier)
	if err != nil {
		t.Fatalf("create server: %v", err)
	}

	httpSrv := httptest.NewServer(srv.routes())

	h := &TestHarness{
		t:          t,
		Server:     srv,
		Store:      store,
		Files:      files,
		Classifier: classifier,
		BaseURL:    httpSrv.URL,
		client:     &http.Client{},
		httpSrv:    httpSrv,
	}

	t.Cleanup(func() {
		httpSrv.Close()
		store.Close()
	})

	return h
}

// Do sends an HTTP request and returns the response.
// Caller must close resp.Body unless using assertion helpers (AssertStatus,
// AssertErrorResponse, ReadJSON) which close it automatically.
func (h *TestHarness) Do(method, path, token string, body any) *http.Response {
	h.t.Helper()

	var rdr io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			h.t.Fatalf("marshal request body: %v", err)
		}
		rdr = &buf
	}

	req, err := http.NewRequest(method, h.BaseURL+path, rdr)
	if err != nil {
		h.t.Fatalf("create request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.t.Fatalf("do request %s %s: %v", method, path, err)
	}
	return resp
}

// DoJSON sends an HTTP request and decodes the JSON response into out.
// Fatals if the response status is >= 400 or if JSON decoding fails.
func (h *TestHarness) DoJSON(method, path, token string, body any, out any) *http.Response {
	h.t.Helper()

	resp := h.Do(method, path, token, body)
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		h.t.Fatalf("DoJSON %s %s: expected success, got %d: %s", method, path, resp.StatusCode, respBody)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		h.t.Fatalf("decode response: %v", err)
	}
	return resp
}

// multipartFile is one file part of a multipart request.
type multipartFile struct {
	field, name string
	data        []byte
}

// DoMultipart sends a multipart/form-data request with fields and files.
func (h *TestHarness) DoMultipart(path, token string, fields map[string]string, files ...multipartFile) *http.Response {
	h.t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			h.t.Fatalf("write field: %v", err)
		}
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.name)
		if err != nil {
			h.t.Fatalf("create form file: %v", err)
		}
		fw.Write(f.data)
	}
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, h.BaseURL+path, &buf)
	if err != nil {
		h.t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		h.t.Fatalf("do multipart %s: %v", path, err)
	}
	return resp
}

// SignUp registers a user through the API and returns the auth response.
func (h *TestHarness) SignUp(email, role, fullName string) AuthResponse {
	h.t.Helper()
	var out AuthResponse
	resp := h.DoJSON("POST", "/v1/auth/signup", "", SignupRequest{
		Email:    email,
		Password: "correct-horse",
		Role:     role,
		Metadata: map[string]string{"full_name": fullName, "phone": "+923001234567"},
	}, &out)
	if resp.StatusCode != http.StatusCreated {
		h.t.Fatalf("signup: expected 201, got %d", resp.StatusCode)
	}
	return out
}

// Register signs a user up and finalizes their profile.
func (h *TestHarness) Register(email, role, fullName string, details map[string]string) AuthResponse {
	h.t.Helper()
	auth := h.SignUp(email, role, fullName)
	var profile serverdb.Profile
	h.DoJSON("GET", "/v1/profiles/"+auth.UserID, auth.APIKey, nil, &profile)
	h.DoJSON("POST", "/v1/signup/finalize", auth.APIKey, FinalizeRequest{
		UserID:    auth.UserID,
		ProfileID: profile.ID,
		Location:  LocationBody{Country: "PK", Province: "Punjab", City: "Lahore"},
		Details:   details,
	}, &profile)
	return auth
}

// CreateFarmer adds a farmer for the consultant behind token.
func (h *TestHarness) CreateFarmer(token, name, email string) *serverdb.Farmer {
	h.t.Helper()
	var f serverdb.Farmer
	resp := h.DoJSON("POST", "/v1/farmers", token, CreateFarmerRequest{FullName: name, Email: email, FarmSizeAcres: 12}, &f)
	if resp.StatusCode != http.StatusCreated {
		h.t.Fatalf("create farmer: expected 201, got %d", resp.StatusCode)
	}
	return &f
}

// testPNG returns a w×h PNG.
func testPNG(t *testing.T, w, hgt int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, hgt))
	for x := 0; x < w; x++ {
		for y := 0; y < hgt; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: 80, B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// --- Response assertion helpers ---

// AssertStatus checks the HTTP status code matches expected. Reads and closes the body on failure.
func AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("expected status %d, got %d: %s", expected, resp.StatusCode, string(body))
	}
}

// AssertErrorResponse checks the response has the expected status and error code.
func AssertErrorResponse(t *testing.T, resp *http.Response, expectedStatus int, expectedCode string) {
	t.Helper()
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != expectedStatus {
		t.Fatalf("expected status %d, got %d: %s", expectedStatus, resp.StatusCode, string(body))
	}
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Error.Code != expectedCode {
		t.Fatalf("expected error code %q, got %q: %s", expectedCode, errResp.Error.Code, errResp.Error.Message)
	}
}

// ReadJSON decodes a JSON response body into the given type.
func ReadJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode json response: %v", err)
	}
	return out
}

// AssertCORSHeaders checks the response has the expected CORS origin header.
func AssertCORSHeaders(t *testing.T, resp *http.Response, expectedOrigin string) {
	t.Helper()
	origin := resp.Header.Get("Access-Control-Allow-Origin")
	if origin != expectedOrigin {
		t.Fatalf("expected Access-Control-Allow-Origin %q, got %q", expectedOrigin, origin)
	}
}

func farmerPath(id string) string { return fmt.Sprintf("/v1/farmers/%s", id) }
