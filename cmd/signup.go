package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/marcus/soilnet/internal/config"
	"github.com/marcus/soilnet/internal/countries"
	"github.com/marcus/soilnet/internal/output"
	"github.com/marcus/soilnet/internal/signup"
	"github.com/marcus/soilnet/internal/wizard"
	"github.com/spf13/cobra"
)

// signupFlags holds the wizard answers that may be given up front.
type signupFlags struct {
	noInput bool
	values  map[string]*string
	phone   string
	avatar  string
	docs    *docFlag
}

var signupFlagNames = map[string]string{
	"name":           wizard.FieldFullName,
	"email":          wizard.FieldEmail,
	"country":        wizard.FieldCountry,
	"province":       wizard.FieldProvince,
	"city":           wizard.FieldCity,
	"address":        wizard.FieldAddress,
	"qualification":  wizard.FieldQualification,
	"specialization": wizard.FieldSpecialization,
	"experience":     wizard.FieldExperienceYears,
	"farm-name":      wizard.FieldFarmName,
	"farm-size":      wizard.FieldFarmSize,
	"crops":          wizard.FieldCrops,
}

var signupCmd = &cobra.Command{
	Use:     "signup",
	Short:   "Create a farmer or consultant account",
	GroupID: "account",
}

var signupFarmerFlags = newSignupFlags()

var signupFarmerCmd = &cobra.Command{
	Use:   "farmer",
	Short: "Register as a farmer",
	Example: `  soilnet signup farmer
  SOILNET_PASSWORD=secret123 soilnet signup farmer --no-input --name "Rashid Ali" \
    --email rashid@example.com --phone +923001234567 --farm-name "Green Acres" \
    --farm-size 12 --province Punjab --city Multan`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSignup(cmd, signup.RoleFarmer, wizard.FarmerSignup, signupFarmerFlags)
	},
}

var signupConsultantFlags = newSignupFlags(
	wizard.FieldEducationalDoc, wizard.FieldProfessionalDoc, wizard.FieldExperienceDoc, wizard.FieldGovernmentID,
)

var signupConsultantCmd = &cobra.Command{
	Use:   "consultant",
	Short: "Register as a consultant",
	Example: `  soilnet signup consultant
  soilnet signup consultant --no-input --name "Dr Hamid" --email hamid@example.com \
    --phone +923001234567 --qualification "PhD Agronomy" --experience 12 \
    --doc educational_doc=degree.pdf --doc government_id=cnic.jpg \
    --province Punjab --city Lahore`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSignup(cmd, signup.RoleConsultant, wizard.ConsultantSignup, signupConsultantFlags)
	},
}

func newSignupFlags(docKinds ...string) *signupFlags {
	sf := &signupFlags{values: map[string]*string{}, docs: newDocFlag(docKinds...)}
	for flag := range signupFlagNames {
		sf.values[flag] = new(string)
	}
	return sf
}

func (sf *signupFlags) register(cmd *cobra.Command, flow *wizard.Flow) {
	known := map[string]bool{}
	for _, f := range flow.Fields() {
		known[f.Name] = true
	}
	for flag, field := range signupFlagNames {
		if known[field] {
			cmd.Flags().StringVar(sf.values[flag], flag, "", "value for "+field)
		}
	}
	cmd.Flags().StringVar(&sf.phone, "phone", "", "full phone number, e.g. +923001234567")
	if known[wizard.FieldAvatar] {
		cmd.Flags().StringVar(&sf.avatar, "avatar", "", "profile photo (.jpg, .png, .webp)")
	}
	if len(sf.docs.allowed) > 0 {
		cmd.Flags().Var(sf.docs, "doc", "document to upload as kind=path (repeatable)")
	}
	cmd.Flags().BoolVar(&sf.noInput, "no-input", false, "do not prompt; fail if the flags do not pass validation")
}

// initialValues builds the wizard's starting values from flags, the
// environment and the config.
func (sf *signupFlags) initialValues(cfg *config.Config) map[string]string {
	values := map[string]string{}
	for flag, field := range signupFlagNames {
		if v := *sf.values[flag]; v != "" {
			values[field] = v
		}
	}
	if pw := os.Getenv("SOILNET_PASSWORD"); pw != "" {
		values[wizard.FieldPassword] = pw
		values[wizard.FieldConfirmPassword] = pw
	}
	if sf.avatar != "" {
		values[wizard.FieldAvatar] = sf.avatar
	}
	for kind, path := range sf.docs.paths {
		values[kind] = path
	}
	prefillPhone(values, sf.phone)
	defaultPhoneCode(values, cfg.Country())
	return values
}

// submitAndRetry submits ctrl's answers. If edit is set and the failure left
// no account behind, edit shows the failure and lets the user change their
// answers, and the answers are submitted again.
func submitAndRetry(ctrl *wizard.Controller, submit func(wizard.State) (*signup.Result, error), edit func(*wizard.Controller, []string) error) (*signup.Result, error) {
	for {
		res, err := submit(ctrl.State())
		if err == nil {
			ctrl.Dispatch(wizard.SubmitSucceeded{})
			return res, nil
		}
		msgs := signup.Messages(err)
		ctrl.Dispatch(wizard.SubmitFailed{Errors: msgs})
		slog.Debug("signup failed", "err", err)
		if edit == nil || !canResubmit(err) {
			return nil, err
		}
		if err := edit(ctrl, msgs); err != nil {
			return nil, err
		}
	}
}

// canResubmit reports whether a failed signup can be sent again. Once the
// account exists a second attempt would register it twice.
func canResubmit(err error) bool {
	var partial *signup.PartialCompletionError
	var upload *signup.UploadError
	var finalize *signup.FinalizeError
	switch {
	case errors.As(err, &partial), errors.As(err, &upload), errors.As(err, &finalize):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

// defaultPhoneCode fills the calling code from the configured country. The
// country itself is left for the wizard to infer from the code, so it keeps
// following the code until the user picks one, except where the code is
// shared and would infer a different region.
func defaultPhoneCode(values map[string]string, def countries.Record) {
	if values[wizard.FieldPhoneCode] != "" {
		return
	}
	values[wizard.FieldPhoneCode] = def.PrefixedCode()
	if values[wizard.FieldCountry] != "" {
		return
	}
	if c, ok := countries.FindByCallingCode(def.CallingCode, countries.All()); !ok || c.ISOCode != def.ISOCode {
		values[wizard.FieldCountry] = def.ISOCode
	}
}

func runSignup(cmd *cobra.Command, role signup.Role, flow *wizard.Flow, sf *signupFlags) error {
	c, cfg, err := newClient(false)
	if err != nil {
		return err
	}

	ctrl := wizard.NewController(flow)
	values := sf.initialValues(cfg)
	if sf.noInput || !stdinIsTerminal() {
		if err := fillWizard(ctrl, values); err != nil {
			return err
		}
	} else {
		for name, v := range values {
			ctrl.Set(name, v)
		}
		if err := runWizard(ctrl); err != nil {
			return err
		}
	}

	orch := signup.New(c,
		signup.WithTriggerWait(cfg.TriggerWait(signup.DefaultTriggerWait)),
		signup.WithPollPolicy(cfg.Signup.Poll),
		signup.WithLogger(slog.Default()),
	)
	submit := func(s wizard.State) (*signup.Result, error) {
		return orch.Submit(cmdContext(cmd), signup.RequestFromState(role, s))
	}
	var edit func(*wizard.Controller, []string) error
	var editErr error
	if !sf.noInput && stdinIsTerminal() && !jsonOut {
		edit = func(ctrl *wizard.Controller, msgs []string) error {
			for _, m := range msgs {
				output.Error("%s", m)
			}
			editErr = runWizard(ctrl)
			return editErr
		}
	}

	res, err := submitAndRetry(ctrl, submit, edit)
	if err != nil {
		if editErr != nil {
			return editErr
		}
		msgs := signup.Messages(err)
		if jsonOut {
			output.JSONError(errorCode(err), msgs[0])
			return errReported
		}
		for _, m := range msgs {
			output.Error("%s", m)
		}
		return errReported
	}
	req := signup.RequestFromState(role, ctrl.State())

	if err := config.SetAuth(configDir, config.Credentials{
		APIKey: res.Identity.APIKey,
		UserID: res.Identity.UserID,
		Email:  res.Identity.Email,
		Role:   string(role),
	}); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}

	if jsonOut {
		return output.JSON(map[string]any{
			"user_id":    res.Identity.UserID,
			"email":      res.Identity.Email,
			"role":       role,
			"profile_id": res.ProfileID,
			"documents":  res.Documents,
		})
	}
	output.Success("Welcome to soilnet, %s! Your %s account is ready.", req.FullName, role)
	for field, url := range res.Documents {
		fmt.Printf("  %s: %s\n", field, url)
	}
	return nil
}

func init() {
	signupFarmerFlags.register(signupFarmerCmd, wizard.FarmerSignup)
	signupConsultantFlags.register(signupConsultantCmd, wizard.ConsultantSignup)
	signupCmd.AddCommand(signupFarmerCmd, signupConsultantCmd)
	rootCmd.AddCommand(signupCmd)
}
