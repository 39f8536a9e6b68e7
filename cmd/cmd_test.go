package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marcus/soilnet/internal/api"
	"github.com/marcus/soilnet/internal/client"
	"github.com/marcus/soilnet/internal/inference"
	"github.com/marcus/soilnet/internal/serverdb"
	"github.com/marcus/soilnet/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type stubClassifier struct{}

func (stubClassifier) Classify(context.Context, string, []byte) (*inference.Prediction, error) {
	return &inference.Prediction{
		Class:         "Loamy Soil",
		Confidence:    0.77,
		Probabilities: map[string]float64{"Loamy Soil": 0.77, "Clay Soil": 0.23},
	}, nil
}

// startServer runs a soilnet server and points the CLI at it.
func startServer(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	store, err := serverdb.Open(filepath.Join(dir, "server.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	files, err := storage.New(filepath.Join(dir, "files"), "http://files.test/files")
	if err != nil {
		t.Fatalf("open files: %v", err)
	}
	srv, err := api.NewServer(api.Config{AllowSignup: true, RateLimitAuth: 1000, RateLimitOther: 1000}, store, files, stubClassifier{})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		store.Close()
	})
	t.Setenv("SOILNET_URL", ts.URL)
}

// resetFlags puts every flag of c and its children back to its default.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if d, ok := f.Value.(*docFlag); ok {
			d.paths = map[string]string{}
		} else {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, child := range c.Commands() {
		resetFlags(child)
	}
}

// runCLI executes the root command with args and returns its stdout.
func runCLI(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	configDir, jsonOut, debugLog = "", false, false

	oldOut := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = w
	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		io.Copy(&buf, r)
		done <- buf.String()
	}()

	rootCmd.SetArgs(append([]string{"--config-dir", dir}, args...))
	runErr := rootCmd.Execute()

	w.Close()
	os.Stdout = oldOut
	return <-done, runErr
}

func mustRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, dir, args...)
	if err != nil {
		t.Fatalf("soilnet %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func decode[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	return v
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 32, 24))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestConsultantCLIWorkflow(t *testing.T) {
	startServer(t)
	dir := t.TempDir()
	files := t.TempDir()
	t.Setenv("SOILNET_PASSWORD", "long-password")

	mustRun(t, dir, "config", "set", "signup.trigger_wait", "1ms")
	mustRun(t, dir, "config", "set", "signup.poll.delay", "10ms")

	out := mustRun(t, dir, "--json", "signup", "consultant", "--no-input",
		"--name", "Dr Hamid", "--email", "hamid@example.com", "--phone", "+923001234567",
		"--qualification", "PhD Agronomy", "--experience", "12",
		"--doc", "educational_doc="+writeFile(t, files, "degree.pdf", []byte("%PDF-1.4 degree")),
		"--doc", "government_id="+writeFile(t, files, "cnic.png", pngBytes(t)),
		"--province", "Punjab", "--city", "Lahore")
	reg := decode[map[string]any](t, out)
	if reg["email"] != "hamid@example.com" || reg["profile_id"] == "" {
		t.Fatalf("unexpected signup output: %v", reg)
	}

	me := decode[client.MeResponse](t, mustRun(t, dir, "--json", "whoami"))
	if me.Role != "consultant" || me.Profile == nil || me.Profile.Phone != "+923001234567" {
		t.Fatalf("unexpected whoami: %+v", me)
	}

	f := decode[client.Farmer](t, mustRun(t, dir, "--json", "farmers", "add", "--no-input",
		"--name", "Rashid Ali", "--email", "Rashid@Example.com", "--phone", "+923111234567",
		"--farm-name", "Green Acres", "--farm-size", "12.5", "--province", "Punjab", "--city", "Multan"))
	if f.ID == "" || f.Email != "rashid@example.com" || f.Country != "PK" || f.FarmSizeAcres != 12.5 {
		t.Fatalf("unexpected farmer: %+v", f)
	}

	list := decode[client.FarmerList](t, mustRun(t, dir, "--json", "farmers", "list", "--search", "green"))
	if list.Total != 1 || list.Data[0].ID != f.ID {
		t.Fatalf("unexpected farmer list: %+v", list)
	}

	upd := decode[client.Farmer](t, mustRun(t, dir, "--json", "farmers", "edit", f.ID, "--crops", "wheat, cotton"))
	if upd.Crops != "wheat, cotton" || upd.FarmName != "Green Acres" {
		t.Fatalf("unexpected update: %+v", upd)
	}
	if _, err := runCLI(t, dir, "farmers", "edit", f.ID, "--farm-size=-3"); err == nil {
		t.Fatal("expected validation error for negative farm size")
	}

	res := decode[client.SoilResult](t, mustRun(t, dir, "--json", "soil", "classify", "--farmer", f.ID,
		writeFile(t, files, "field.png", pngBytes(t))))
	if res.Label != "Loamy Soil" {
		t.Fatalf("unexpected result: %+v", res)
	}

	out = mustRun(t, dir, "soil", "results", "--farmer", f.ID)
	if !strings.Contains(out, res.ID) || !strings.Contains(out, "77.0%") {
		t.Fatalf("unexpected results output:\n%s", out)
	}

	out = mustRun(t, dir, "soil", "show", res.ID)
	for _, want := range []string{"# Loamy soil", "**Farmer:** Rashid Ali", "## Suitable crops"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}

	inbox := decode[client.NotificationList](t, mustRun(t, dir, "--json", "notifications", "--unread"))
	if inbox.Unread == 0 {
		t.Fatalf("expected unread notifications, got %+v", inbox)
	}
	mustRun(t, dir, "notifications", "read", "--all")
	inbox = decode[client.NotificationList](t, mustRun(t, dir, "--json", "notifications"))
	if inbox.Unread != 0 {
		t.Fatalf("expected everything read, got %d unread", inbox.Unread)
	}
	mustRun(t, dir, "notifications", "rm", inbox.Data[0].ID)

	if _, err := runCLI(t, dir, "farmers", "rm", f.ID); err == nil {
		t.Fatal("rm without --yes outside a terminal should fail")
	}
	mustRun(t, dir, "farmers", "rm", "--yes", f.ID)
	_, err := runCLI(t, dir, "farmers", "show", f.ID)
	if !errors.Is(err, client.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	mustRun(t, dir, "logout")
	if _, err := runCLI(t, dir, "whoami"); !errors.Is(err, errNotLoggedIn) {
		t.Fatalf("expected errNotLoggedIn, got %v", err)
	}

	auth := decode[map[string]string](t, mustRun(t, dir, "--json", "login", "--email", "hamid@example.com"))
	if auth["role"] != "consultant" {
		t.Fatalf("unexpected login output: %v", auth)
	}
}

func TestFarmerSignupValidationFailure(t *testing.T) {
	startServer(t)
	dir := t.TempDir()
	t.Setenv("SOILNET_PASSWORD", "long-password")

	_, err := runCLI(t, dir, "signup", "farmer", "--no-input", "--name", "R2D2", "--email", "bad")
	var se *stepError
	if !errors.As(err, &se) {
		t.Fatalf("expected stepError, got %v", err)
	}
	if se.Step != 1 || len(se.Errors) < 2 {
		t.Fatalf("unexpected step error: %+v", se)
	}
}

func TestFarmerSignupDuplicate(t *testing.T) {
	startServer(t)
	dir := t.TempDir()
	t.Setenv("SOILNET_PASSWORD", "long-password")
	mustRun(t, dir, "config", "set", "signup.trigger_wait", "1ms")

	args := []string{"signup", "farmer", "--no-input", "--name", "Bibi Noor", "--email", "noor@example.com",
		"--phone", "+923001112233", "--farm-name", "Noor Farm", "--farm-size", "4",
		"--province", "Sindh", "--city", "Hyderabad"}
	out := mustRun(t, dir, args...)
	if !strings.Contains(out, "Welcome to soilnet, Bibi Noor!") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	out, err := runCLI(t, t.TempDir(), args...)
	if !errors.Is(err, errReported) {
		t.Fatalf("expected a reported failure, got %v", err)
	}
	if !strings.Contains(out, "already exists") {
		t.Fatalf("expected duplicate message, got:\n%s", out)
	}
}

func TestPhoneParseCommand(t *testing.T) {
	out := mustRun(t, t.TempDir(), "--json", "phone", "parse", "+923001234567", "03001234567")
	got := decode[[]phoneParseResult](t, out)
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].CallingCode != "+92" || got[0].SubscriberNumber != "3001234567" || got[0].Country != "PK" || got[0].Outcome != "matched" {
		t.Errorf("unexpected parse: %+v", got[0])
	}
	if got[1].Outcome != "defaulted" || got[1].Normalized != "+9203001234567" {
		t.Errorf("unexpected defaulted parse: %+v", got[1])
	}
}

func TestCountriesCommand(t *testing.T) {
	out := mustRun(t, t.TempDir(), "countries", "+880")
	if !strings.Contains(out, "BD") || !strings.Contains(out, "Bangladesh") {
		t.Fatalf("expected Bangladesh, got:\n%s", out)
	}
	out = mustRun(t, t.TempDir(), "countries", "pakistan")
	if !strings.Contains(out, "+92") {
		t.Fatalf("expected +92, got:\n%s", out)
	}
}

func TestConfigCommands(t *testing.T) {
	t.Setenv("SOILNET_URL", "")
	dir := t.TempDir()
	mustRun(t, dir, "config", "set", "default_country", "bd")
	if out := mustRun(t, dir, "config", "get", "default_country"); strings.TrimSpace(out) != "BD" {
		t.Fatalf("unexpected country %q", out)
	}
	all := decode[map[string]string](t, mustRun(t, dir, "--json", "config", "get"))
	if all["server_url"] != "http://localhost:8080" || all["signup.poll.max_attempts"] != "5" {
		t.Fatalf("unexpected config: %v", all)
	}
	if _, err := runCLI(t, dir, "config", "set", "default_country", "XX"); err == nil {
		t.Fatal("expected error for unknown country")
	}
	if out := mustRun(t, dir, "config", "path"); strings.TrimSpace(out) != filepath.Join(dir, "config.yaml") {
		t.Fatalf("unexpected path %q", out)
	}
}
