package cmd

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/marcus/soilnet/internal/client"
	"github.com/marcus/soilnet/internal/config"
	"github.com/marcus/soilnet/internal/countries"
	"github.com/marcus/soilnet/internal/output"
	"github.com/marcus/soilnet/internal/validate"
	"github.com/marcus/soilnet/internal/wizard"
)

func TestDocFlag(t *testing.T) {
	d := newDocFlag("educational_doc", "government_id")
	if err := d.Set("government_id=/tmp/id.png"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := d.Set(" educational_doc = /tmp/degree.pdf "); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := d.String(); got != "educational_doc=/tmp/degree.pdf,government_id=/tmp/id.png" {
		t.Errorf("String() = %q", got)
	}

	for _, bad := range []string{"educational_doc", "=x", "government_id=", "passport=/tmp/p.pdf", "government_id=/tmp/other.png"} {
		if err := d.Set(bad); err == nil {
			t.Errorf("Set(%q) should fail", bad)
		}
	}
	if d.Type() != "kind=path" {
		t.Errorf("Type() = %q", d.Type())
	}
}

func TestPrefillPhone(t *testing.T) {
	values := map[string]string{}
	prefillPhone(values, " +8801712345678 ")
	if values[wizard.FieldPhoneCode] != "+880" || values[wizard.FieldPhone] != "1712345678" {
		t.Fatalf("unexpected split: %v", values)
	}
	if values[wizard.FieldCountry] != "BD" {
		t.Errorf("country = %q, want BD", values[wizard.FieldCountry])
	}

	values = map[string]string{wizard.FieldCountry: "IN"}
	prefillPhone(values, "+923001234567")
	if values[wizard.FieldCountry] != "IN" {
		t.Errorf("chosen country overwritten: %q", values[wizard.FieldCountry])
	}

	values = map[string]string{}
	prefillPhone(values, "3001234567")
	if _, ok := values[wizard.FieldCountry]; ok {
		t.Errorf("country inferred from a defaulted code: %v", values)
	}

	values = map[string]string{}
	prefillPhone(values, "  ")
	if len(values) != 0 {
		t.Errorf("blank phone filled values: %v", values)
	}
}

func TestInitialValuesLeaveCountryToInference(t *testing.T) {
	cfg := &config.Config{DefaultCountry: "PK"}
	values := newSignupFlags().initialValues(cfg)
	if values[wizard.FieldPhoneCode] != "+92" {
		t.Fatalf("phone code = %q, want +92", values[wizard.FieldPhoneCode])
	}
	if _, ok := values[wizard.FieldCountry]; ok {
		t.Fatalf("country prefilled: %v", values)
	}

	ctrl := wizard.NewController(wizard.FarmerCreate)
	for name, v := range values {
		ctrl.Set(name, v)
	}
	if got := ctrl.State().Value(wizard.FieldCountry); got != "PK" {
		t.Fatalf("country = %q, want PK from the default code", got)
	}
	ctrl.Set(wizard.FieldPhoneCode, "+44")
	if got := ctrl.State().Value(wizard.FieldCountry); got != "GB" {
		t.Errorf("country = %q, want GB after changing the code", got)
	}

	sf := newSignupFlags()
	*sf.values["country"] = "IN"
	values = sf.initialValues(cfg)
	ctrl = wizard.NewController(wizard.FarmerCreate)
	for name, v := range values {
		ctrl.Set(name, v)
	}
	ctrl.Set(wizard.FieldPhoneCode, "+44")
	if got := ctrl.State().Value(wizard.FieldCountry); got != "IN" {
		t.Errorf("--country overwritten: %q", got)
	}
}

func TestDefaultPhoneCodeSharedCode(t *testing.T) {
	ca, ok := countries.ByISO("CA")
	if !ok {
		t.Fatal("CA missing")
	}
	values := map[string]string{}
	defaultPhoneCode(values, ca)
	if values[wizard.FieldPhoneCode] != "+1" || values[wizard.FieldCountry] != "CA" {
		t.Errorf("values = %v, want +1 and CA", values)
	}
}

func farmerCreateValues() map[string]string {
	return map[string]string{
		wizard.FieldFullName:  "Rashid Ali",
		wizard.FieldEmail:     "Rashid@Example.com",
		wizard.FieldPhoneCode: "+92",
		wizard.FieldPhone:     "3001234567",
		wizard.FieldCountry:   "pk",
		wizard.FieldProvince:  "Punjab",
		wizard.FieldCity:      "Multan",
		wizard.FieldFarmName:  "Green Acres",
		wizard.FieldFarmSize:  "12.5",
		wizard.FieldCrops:     " wheat ",
	}
}

func TestFillWizardAndFarmerFromState(t *testing.T) {
	ctrl := wizard.NewController(wizard.FarmerCreate)
	if err := fillWizard(ctrl, farmerCreateValues()); err != nil {
		t.Fatalf("fillWizard: %v", err)
	}
	s := ctrl.State()
	if !s.IsLast() {
		t.Fatalf("expected the review step, at step %d", s.Step)
	}

	f := farmerFromState(s)
	want := client.Farmer{
		FullName:      "Rashid Ali",
		Email:         "rashid@example.com",
		Phone:         "+923001234567",
		Country:       "PK",
		Province:      "Punjab",
		City:          "Multan",
		FarmName:      "Green Acres",
		FarmSizeAcres: 12.5,
		Crops:         "wheat",
	}
	if f != want {
		t.Errorf("farmerFromState:\n got %+v\nwant %+v", f, want)
	}
}

func TestFillWizardStopsAtInvalidStep(t *testing.T) {
	values := farmerCreateValues()
	values[wizard.FieldFarmSize] = "lots"
	ctrl := wizard.NewController(wizard.FarmerCreate)

	err := fillWizard(ctrl, values)
	var se *stepError
	if !errors.As(err, &se) {
		t.Fatalf("expected stepError, got %v", err)
	}
	if se.Step != 2 || len(se.Errors) != 1 {
		t.Fatalf("unexpected step error: %+v", se)
	}
	if !strings.Contains(se.Error(), "step 2") {
		t.Errorf("Error() = %q", se.Error())
	}
	if ctrl.State().Step != 2 {
		t.Errorf("controller moved past the invalid step")
	}
}

func TestFirstInvalidStep(t *testing.T) {
	res := validate.Result{Invalid: map[string]bool{wizard.FieldFarmName: true}}
	if got := firstInvalidStep(wizard.FarmerCreate, res); got != 2 {
		t.Errorf("firstInvalidStep = %d, want 2", got)
	}
	if got := firstInvalidStep(wizard.FarmerCreate, validate.Result{}); got != 1 {
		t.Errorf("firstInvalidStep with nothing invalid = %d, want 1", got)
	}
}

func TestReviewSummaryMasksSecrets(t *testing.T) {
	ctrl := wizard.NewController(wizard.FarmerSignup)
	ctrl.Set(wizard.FieldFullName, "Bibi Noor")
	ctrl.Set(wizard.FieldPhoneCode, "+92")
	ctrl.Set(wizard.FieldPhone, "3001112233")
	ctrl.Set(wizard.FieldPassword, "long-password")

	got := reviewSummary(ctrl.State())
	if strings.Contains(got, "long-password") {
		t.Errorf("password leaked into summary:\n%s", got)
	}
	if !strings.Contains(got, "+923001112233") || !strings.Contains(got, "Bibi Noor") {
		t.Errorf("summary missing values:\n%s", got)
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&client.APIError{Status: 404}, output.ErrCodeNotFound},
		{fmt.Errorf("wrapped: %w", &client.APIError{Status: 401}), output.ErrCodeUnauthorized},
		{errNotLoggedIn, output.ErrCodeUnauthorized},
		{&client.APIError{Status: 409}, output.ErrCodeConflict},
		{&client.APIError{Status: 400, Code: "validation_failed"}, "validation_failed"},
		{&client.APIError{Status: 422}, output.ErrCodeInvalidInput},
		{&client.APIError{Status: 502}, output.ErrCodeServerError},
		{errors.New("boom"), output.ErrCodeServerError},
	}
	for _, tt := range tests {
		if got := errorCode(tt.err); got != tt.want {
			t.Errorf("errorCode(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestCheckConfigKey(t *testing.T) {
	if err := checkConfigKey("server_url"); err != nil {
		t.Fatalf("known key rejected: %v", err)
	}
	err := checkConfigKey("server-ur")
	if err == nil || !strings.Contains(err.Error(), "did you mean server_url?") {
		t.Fatalf("unexpected error: %v", err)
	}
	err = checkConfigKey("zzz")
	if err == nil || !strings.Contains(err.Error(), "known keys") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUnknownFlagSuggestions(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "farmers", "list", "--serch", "x")
	if err == nil || !strings.Contains(err.Error(), "did you mean --search?") {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = runCLI(t, t.TempDir(), "farmers", "rm", "--force", "fa_1")
	if err == nil || !strings.Contains(err.Error(), "--yes, -y") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSinceFilters(t *testing.T) {
	since := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	results := []client.SoilResult{
		{ID: "sr_old", CreatedAt: since.Add(-time.Minute)},
		{ID: "sr_edge", CreatedAt: since},
		{ID: "sr_new", CreatedAt: since.Add(48 * time.Hour)},
	}
	got := resultsSince(results, since)
	if len(got) != 2 || got[0].ID != "sr_edge" || got[1].ID != "sr_new" {
		t.Errorf("resultsSince = %+v", got)
	}
	if len(resultsSince(results, time.Time{})) != 3 {
		t.Error("zero since should keep everything")
	}

	notes := []client.Notification{
		{ID: "nt_old", CreatedAt: "2026-02-09T23:59:00Z"},
		{ID: "nt_new", CreatedAt: "2026-02-11T08:00:00Z"},
		{ID: "nt_bad", CreatedAt: "yesterday-ish"},
	}
	gotN := notificationsSince(notes, since)
	if len(gotN) != 2 || gotN[0].ID != "nt_new" || gotN[1].ID != "nt_bad" {
		t.Errorf("notificationsSince = %+v", gotN)
	}
}

func TestSinceFlagRejectsGarbage(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "soil", "results", "--since", "soonish")
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestFarmerUpdateFromFlagsErrorOrder(t *testing.T) {
	want := "Full name must be between 2 and 50 characters; " +
		"Farm size (acres) cannot be negative; " +
		"City must be at most 60 characters"
	for i := 0; i < 10; i++ {
		resetFlags(farmersEditCmd)
		fl := farmersEditCmd.Flags()
		fl.Set("city", strings.Repeat("c", 70))
		fl.Set("farm-size", "-3")
		fl.Set("name", "X")

		_, err := farmerUpdateFromFlags(farmersEditCmd)
		if err == nil || err.Error() != want {
			t.Fatalf("run %d: err = %v\nwant %s", i, err, want)
		}
	}
	resetFlags(farmersEditCmd)
}

func TestFarmerUpdateFromFlags(t *testing.T) {
	resetFlags(farmersEditCmd)
	defer resetFlags(farmersEditCmd)
	fl := farmersEditCmd.Flags()
	fl.Set("phone", "+923001234567")
	fl.Set("country", "pk")
	fl.Set("farm-size", "7.5")

	upd, err := farmerUpdateFromFlags(farmersEditCmd)
	if err != nil {
		t.Fatalf("farmerUpdateFromFlags: %v", err)
	}
	if upd.Phone == nil || *upd.Phone != "+923001234567" {
		t.Errorf("phone = %v", upd.Phone)
	}
	if upd.Country == nil || *upd.Country != "PK" {
		t.Errorf("country = %v", upd.Country)
	}
	if upd.FarmSizeAcres == nil || *upd.FarmSizeAcres != 7.5 {
		t.Errorf("farm size = %v", upd.FarmSizeAcres)
	}
	if upd.FullName != nil || upd.City != nil {
		t.Errorf("unset flags leaked into the update: %+v", upd)
	}
}
