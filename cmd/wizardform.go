package cmd

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/marcus/soilnet/internal/countries"
	"github.com/marcus/soilnet/internal/output"
	"github.com/marcus/soilnet/internal/phone"
	"github.com/marcus/soilnet/internal/validate"
	"github.com/marcus/soilnet/internal/wizard"
	"golang.org/x/term"
)

// errWizardAborted is returned when the user quits a form.
var errWizardAborted = errors.New("cancelled")

// stepError is a wizard step that failed validation in non-interactive mode.
type stepError struct {
	Step   int
	Title  string
	Errors []string
}

func (e *stepError) Error() string {
	return fmt.Sprintf("step %d (%s): %s", e.Step, e.Title, strings.Join(e.Errors, "; "))
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// prefillPhone splits a full phone number into the calling-code and
// subscriber fields, and fills the country from the calling code when the
// caller did not pick one.
func prefillPhone(values map[string]string, fullPhone string) {
	fullPhone = strings.TrimSpace(fullPhone)
	if fullPhone == "" {
		return
	}
	list := countries.All()
	p := phone.Parse(fullPhone, list)
	values[wizard.FieldPhoneCode] = p.CallingCode
	values[wizard.FieldPhone] = p.SubscriberNumber
	if values[wizard.FieldCountry] == "" && p.Ok() {
		values[wizard.FieldCountry] = phone.InferCountry(fullPhone, list).ISOCode
	}
}

// fillWizard drives ctrl with values and no prompts. It stops at the first
// step that does not validate.
func fillWizard(ctrl *wizard.Controller, values map[string]string) error {
	for name, v := range values {
		ctrl.Set(name, v)
	}
	for {
		s := ctrl.State()
		last := s.IsLast()
		if errs := ctrl.Next(); len(errs) > 0 {
			return &stepError{Step: s.Step, Title: s.Current().Title, Errors: errs}
		}
		if last {
			return nil
		}
	}
}

// runWizard prompts for every step of ctrl's flow with huh forms. Values
// already set on ctrl are offered as defaults. It returns once the final
// step validates.
func runWizard(ctrl *wizard.Controller) error {
	for {
		s := ctrl.State()
		fmt.Println(output.StepHeader(s))

		step := s.Current()
		if step.Review {
			submit, err := reviewStep(ctrl)
			if err != nil {
				return err
			}
			if !submit {
				continue
			}
			if res := wizard.ValidateAll(ctrl.State()); !res.OK() {
				for _, e := range res.Errors {
					output.Error("%s", e)
				}
				ctrl.GoTo(firstInvalidStep(ctrl.State().Flow, res))
				continue
			}
			return nil
		}

		if err := promptStep(ctrl, step); err != nil {
			return err
		}
		last := ctrl.State().IsLast()
		if errs := ctrl.Next(); len(errs) > 0 {
			fmt.Print(output.FormatStepErrors(ctrl.State(), time.Now()))
			continue
		}
		if last {
			return nil
		}
	}
}

// promptStep shows one form group for step's fields and stores the answers.
func promptStep(ctrl *wizard.Controller, step wizard.StepDef) error {
	answers := make(map[string]*string, len(step.Fields))
	var fields []huh.Field
	for _, f := range step.Fields {
		v := ctrl.State().Value(f.Name)
		answers[f.Name] = &v
		fields = append(fields, formField(f, answers[f.Name]))
	}

	form := huh.NewForm(huh.NewGroup(fields...).Title(step.Title)).WithTheme(huh.ThemeDracula())
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return errWizardAborted
		}
		return err
	}
	for name, v := range answers {
		ctrl.Set(name, *v)
	}
	return nil
}

func formField(f validate.Field, value *string) huh.Field {
	title := f.Label
	if f.Required || f.Kind == validate.KindName || f.Kind == validate.KindEmail ||
		f.Kind == validate.KindPhone || f.Kind == validate.KindPassword || f.Kind == validate.KindConfirm {
		title += " *"
	}

	switch {
	case f.Kind == validate.KindChoice:
		opts := make([]huh.Option[string], len(f.Choices))
		for i, c := range f.Choices {
			opts[i] = huh.NewOption(c, c)
		}
		return huh.NewSelect[string]().Title(title).Options(opts...).Value(value)

	case f.Name == wizard.FieldCountry:
		return huh.NewSelect[string]().
			Title(title).
			Options(countryOptions()...).
			Height(8).
			Value(value)

	case f.Kind == validate.KindPassword || f.Kind == validate.KindConfirm:
		return huh.NewInput().Title(title).EchoMode(huh.EchoModePassword).Value(value)

	case f.Kind == validate.KindFile:
		return huh.NewInput().
			Title(title).
			Description("path to a " + strings.Join(f.Extensions, ", ") + " file").
			Value(value)
	}

	in := huh.NewInput().Title(title).Value(value)
	if f.MaxLength > 0 {
		in = in.CharLimit(f.MaxLength)
	}
	return in
}

func countryOptions() []huh.Option[string] {
	list := append([]countries.Record(nil), countries.All()...)
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	opts := make([]huh.Option[string], len(list))
	for i, r := range list {
		opts[i] = huh.NewOption(fmt.Sprintf("%s %s (%s)", r.Flag, r.Name, r.PrefixedCode()), r.ISOCode)
	}
	return opts
}

// reviewStep prints a summary and asks whether to submit or revisit a step.
func reviewStep(ctrl *wizard.Controller) (bool, error) {
	s := ctrl.State()
	fmt.Println(reviewSummary(s))

	choice := "submit"
	opts := []huh.Option[string]{huh.NewOption("Submit", "submit")}
	for i, st := range s.Flow.Steps {
		if st.Review {
			continue
		}
		opts = append(opts, huh.NewOption(fmt.Sprintf("Edit: %s", st.Title), fmt.Sprint(i+1)))
	}
	err := huh.NewSelect[string]().Title("Ready to submit?").Options(opts...).Value(&choice).Run()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, errWizardAborted
		}
		return false, err
	}
	if choice == "submit" {
		return true, nil
	}
	step, _ := strconv.Atoi(choice)
	ctrl.GoTo(step)
	return false, nil
}

// reviewSummary lists every answered field, with secrets masked.
func reviewSummary(s wizard.State) string {
	var lines []string
	for _, st := range s.Flow.Steps {
		if st.Review {
			continue
		}
		lines = append(lines, output.SectionHeader(st.Title))
		for _, f := range st.Fields {
			v := strings.TrimSpace(s.Value(f.Name))
			if v == "" || f.Name == wizard.FieldPhoneCode {
				continue
			}
			switch f.Kind {
			case validate.KindPassword, validate.KindConfirm:
				v = strings.Repeat("•", 8)
			case validate.KindPhone:
				v = phone.Join(s.Value(f.CodeField), v)
			}
			lines = append(lines, fmt.Sprintf("  %s: %s", f.Label, v))
		}
	}
	return strings.Join(lines, "\n")
}

func firstInvalidStep(flow *wizard.Flow, res validate.Result) int {
	for i, st := range flow.Steps {
		for _, f := range st.Fields {
			if res.Invalid[f.Name] {
				return i + 1
			}
		}
	}
	return 1
}
