package validate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckName(t *testing.T) {
	f := Field{Name: "full_name", Label: "Full name", Kind: KindName}
	tests := []struct {
		value string
		want  int
	}{
		{"Ayesha Khan", 0},
		{"Jean-Luc O'Neil Jr.", 0},
		{"Zoë", 0},
		{"", 1},
		{"A", 1},
		{"R2D2", 1},
		{"X1", 1},
		{"1", 2},
		{strings.Repeat("a", 51), 1},
	}
	for _, tt := range tests {
		got := Check(f, map[string]string{"full_name": tt.value})
		if len(got) != tt.want {
			t.Errorf("Check(%q) = %v, want %d errors", tt.value, got, tt.want)
		}
	}
}

func TestCheckEmail(t *testing.T) {
	f := Field{Name: "email", Label: "Email", Kind: KindEmail}
	tests := []struct {
		value string
		ok    bool
	}{
		{"farmer@example.com", true},
		{"a.b+tag@sub.example.org", true},
		{"", false},
		{"no-at-sign", false},
		{"a@b", false},
		{"a@b.c", false},
	}
	for _, tt := range tests {
		got := Check(f, map[string]string{"email": tt.value})
		if (len(got) == 0) != tt.ok {
			t.Errorf("Check(%q) = %v, want ok=%v", tt.value, got, tt.ok)
		}
	}
}

func TestCheckPhone(t *testing.T) {
	f := Field{Name: "phone", Label: "Phone", Kind: KindPhone, CodeField: "phone_code"}
	tests := []struct {
		name  string
		code  string
		value string
		want  int
	}{
		{"pakistan exact", "+92", "3001234567", 0},
		{"pakistan nine digits", "+92", "300123456", 1},
		{"pakistan eleven digits", "+92", "30012345678", 1},
		{"uk in window", "+44", "7911123456", 0},
		{"too short", "+44", "123456", 1},
		{"too long", "+44", "1234567890123456", 1},
		{"letters and short", "+44", "12ab", 2},
		{"letters right length", "+44", "12345ab", 1},
		{"empty", "+44", "", 1},
		{"code without plus", "92", "3001234567", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Check(f, map[string]string{"phone": tt.value, "phone_code": tt.code})
			if len(got) != tt.want {
				t.Errorf("got %v, want %d errors", got, tt.want)
			}
		})
	}
}

func TestCheckPassword(t *testing.T) {
	f := Field{Name: "password", Label: "Password", Kind: KindPassword}
	tests := []struct {
		value string
		want  int
	}{
		{"Harvest2024", 0},
		{"", 1},
		{"short1A", 1},
		{"alllowercase1", 1},
		{"ALLUPPERCASE1", 1},
		{"NoDigitsHere", 1},
		{"abc", 3},
	}
	for _, tt := range tests {
		got := Check(f, map[string]string{"password": tt.value})
		if len(got) != tt.want {
			t.Errorf("Check(%q) = %v, want %d errors", tt.value, got, tt.want)
		}
	}
}

func TestCheckConfirm(t *testing.T) {
	f := Field{Name: "confirm", Label: "Confirm password", Kind: KindConfirm, Ref: "password"}
	if errs := Check(f, map[string]string{"password": "Harvest2024", "confirm": "Harvest2024"}); len(errs) != 0 {
		t.Errorf("matching passwords: %v", errs)
	}
	errs := Check(f, map[string]string{"password": "Harvest2024", "confirm": "Harvest2025"})
	if len(errs) != 1 || errs[0] != "Passwords do not match" {
		t.Errorf("mismatch: %v", errs)
	}
}

func TestCheckNumber(t *testing.T) {
	f := Field{Name: "farm_size", Label: "Farm size", Kind: KindNumber, Required: true}
	tests := []struct {
		value string
		want  int
	}{
		{"12.5", 0},
		{"0", 0},
		{"1000000", 0},
		{"", 1},
		{"abc", 1},
		{"-3", 1},
		{"1.234", 1},
		{"1000000.5", 1},
		{"-1.234", 2},
		{"NaN", 1},
		{"nan", 1},
		{"Inf", 1},
		{"+5", 1},
		{"1e3", 1},
		{"0x10", 1},
		{".5", 1},
		{"5.", 1},
	}
	for _, tt := range tests {
		got := Check(f, map[string]string{"farm_size": tt.value})
		if len(got) != tt.want {
			t.Errorf("Check(%q) = %v, want %d errors", tt.value, got, tt.want)
		}
	}

	optional := Field{Name: "years", Kind: KindNumber, Max: 60}
	if errs := Check(optional, map[string]string{}); len(errs) != 0 {
		t.Errorf("optional empty number: %v", errs)
	}
	if errs := Check(optional, map[string]string{"years": "61"}); len(errs) != 1 {
		t.Errorf("custom max: %v", errs)
	}
}

func TestParseNumber(t *testing.T) {
	for _, ok := range []string{"0", "12", "12.5", "-3", "007"} {
		if _, err := ParseNumber(ok); err != nil {
			t.Errorf("ParseNumber(%q): %v", ok, err)
		}
	}
	for _, bad := range []string{"", "NaN", "-Inf", "+1", "1e400", "1,000", " 1"} {
		if n, err := ParseNumber(bad); err == nil {
			t.Errorf("ParseNumber(%q) = %v, want error", bad, n)
		}
	}
}

func TestCheckChoiceAndText(t *testing.T) {
	choice := Field{Name: "role", Kind: KindChoice, Required: true, Choices: []string{"farmer", "consultant"}}
	if errs := Check(choice, map[string]string{"role": "farmer"}); len(errs) != 0 {
		t.Errorf("valid choice: %v", errs)
	}
	if errs := Check(choice, map[string]string{"role": "admin"}); len(errs) != 1 {
		t.Errorf("invalid choice: %v", errs)
	}

	text := Field{Name: "address", Kind: KindText, Required: true, MaxLength: 10}
	if errs := Check(text, map[string]string{"address": "12 Canal"}); len(errs) != 0 {
		t.Errorf("valid text: %v", errs)
	}
	if errs := Check(text, map[string]string{"address": "12 Canal Road, Lahore"}); len(errs) != 1 {
		t.Errorf("long text: %v", errs)
	}
	if errs := Check(text, map[string]string{"address": "  "}); len(errs) != 1 {
		t.Errorf("blank required text: %v", errs)
	}
}

func TestCheckFile(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "degree.pdf")
	if err := os.WriteFile(pdf, []byte("%PDF-1.4"), 0644); err != nil {
		t.Fatal(err)
	}
	exe := filepath.Join(dir, "tool.exe")
	if err := os.WriteFile(exe, []byte("MZ"), 0644); err != nil {
		t.Fatal(err)
	}

	f := Field{Name: "doc", Label: "Degree", Kind: KindFile, Extensions: []string{".pdf", ".jpg", ".png"}}
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{"allowed", pdf, 0},
		{"optional empty", "", 0},
		{"wrong extension", exe, 1},
		{"missing", filepath.Join(dir, "nope.pdf"), 1},
		{"directory", dir, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Check(f, map[string]string{"doc": tt.value})
			if len(got) != tt.want {
				t.Errorf("got %v, want %d errors", got, tt.want)
			}
		})
	}
}

func TestStepCollectsEveryViolation(t *testing.T) {
	fields := []Field{
		{Name: "full_name", Label: "Full name", Kind: KindName},
		{Name: "email", Label: "Email", Kind: KindEmail},
		{Name: "phone", Label: "Phone", Kind: KindPhone, CodeField: "phone_code"},
		{Name: "password", Label: "Password", Kind: KindPassword},
	}
	values := map[string]string{
		"full_name":  "1",    // length, charset
		"email":      "bad",  // pattern
		"phone":      "12ab", // digits, exact length for +92
		"phone_code": "+92",
		"password":   "abc", // length, upper, digit
	}

	res := Step(fields, values)
	if res.OK() {
		t.Fatal("expected failures")
	}
	if len(res.Errors) != 8 {
		t.Errorf("got %d errors, want 8: %v", len(res.Errors), res.Errors)
	}
	if len(res.Invalid) != 4 {
		t.Errorf("invalid set = %v", res.Invalid)
	}
	got := res.InvalidFields(fields)
	want := []string{"full_name", "email", "phone", "password"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("InvalidFields = %v, want %v", got, want)
	}
	if !strings.HasPrefix(res.Errors[0], "Full name") {
		t.Errorf("errors not in field order: %v", res.Errors)
	}
}

func TestStepValid(t *testing.T) {
	fields := []Field{
		{Name: "full_name", Kind: KindName},
		{Name: "email", Kind: KindEmail},
	}
	res := Step(fields, map[string]string{"full_name": "Bilal Ahmed", "email": "bilal@example.pk"})
	if !res.OK() || len(res.Invalid) != 0 {
		t.Errorf("unexpected result: %+v", res)
	}
}
