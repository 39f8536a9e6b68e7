package cmd

import (
	"errors"
	"strings"
	"testing"

	"github.com/marcus/soilnet/internal/signup"
	"github.com/marcus/soilnet/internal/wizard"
)

func TestSubmitAndRetryEditsAfterFailure(t *testing.T) {
	ctrl := wizard.NewController(wizard.FarmerSignup)
	ctrl.Set(wizard.FieldEmail, "taken@example.com")

	var sent []string
	submit := func(s wizard.State) (*signup.Result, error) {
		sent = append(sent, s.Value(wizard.FieldEmail))
		if s.Value(wizard.FieldEmail) == "taken@example.com" {
			return nil, signup.ErrAlreadyRegistered
		}
		return &signup.Result{ProfileID: "p_1"}, nil
	}
	var shown []string
	edit := func(c *wizard.Controller, msgs []string) error {
		shown = append(shown, msgs...)
		if len(c.State().Errors) == 0 {
			t.Error("failure not recorded on the wizard state")
		}
		c.Set(wizard.FieldEmail, "fresh@example.com")
		return nil
	}

	res, err := submitAndRetry(ctrl, submit, edit)
	if err != nil {
		t.Fatalf("submitAndRetry: %v", err)
	}
	if res.ProfileID != "p_1" {
		t.Errorf("result = %+v", res)
	}
	if len(sent) != 2 || sent[1] != "fresh@example.com" {
		t.Errorf("submitted emails = %v", sent)
	}
	if len(shown) != 1 || !strings.Contains(shown[0], "already exists") {
		t.Errorf("messages shown = %v", shown)
	}
	if !ctrl.State().Done {
		t.Error("wizard not done after a successful resubmit")
	}
}

func TestSubmitAndRetryStopsOnceAccountExists(t *testing.T) {
	failures := []error{
		&signup.PartialCompletionError{UserID: "u_1", Attempts: 5},
		&signup.UploadError{UserID: "u_1", Err: errors.New("disk full")},
		&signup.FinalizeError{UserID: "u_1", Err: errors.New("boom")},
	}
	for _, failure := range failures {
		ctrl := wizard.NewController(wizard.FarmerSignup)
		calls := 0
		submit := func(wizard.State) (*signup.Result, error) {
			calls++
			return nil, failure
		}
		edit := func(*wizard.Controller, []string) error {
			t.Errorf("%T: edit offered after the account was created", failure)
			return nil
		}
		_, err := submitAndRetry(ctrl, submit, edit)
		if !errors.Is(err, failure) || calls != 1 {
			t.Errorf("%T: err = %v after %d calls", failure, err, calls)
		}
		if len(ctrl.State().Errors) == 0 {
			t.Errorf("%T: failure not recorded on the wizard state", failure)
		}
	}
}

func TestSubmitAndRetryWithoutEdit(t *testing.T) {
	ctrl := wizard.NewController(wizard.FarmerSignup)
	calls := 0
	_, err := submitAndRetry(ctrl, func(wizard.State) (*signup.Result, error) {
		calls++
		return nil, signup.ErrAlreadyRegistered
	}, nil)
	if !errors.Is(err, signup.ErrAlreadyRegistered) || calls != 1 {
		t.Errorf("err = %v after %d calls", err, calls)
	}
}

func TestSubmitAndRetryEditAborted(t *testing.T) {
	ctrl := wizard.NewController(wizard.FarmerSignup)
	_, err := submitAndRetry(ctrl, func(wizard.State) (*signup.Result, error) {
		return nil, signup.ErrAlreadyRegistered
	}, func(*wizard.Controller, []string) error {
		return errWizardAborted
	})
	if !errors.Is(err, errWizardAborted) {
		t.Errorf("err = %v, want errWizardAborted", err)
	}
}
