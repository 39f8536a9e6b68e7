// Package wizard drives multi-step data-entry flows. State is an immutable
// value; Reduce applies one Action and returns the next State. Advancing is
// guarded by the validation rules of the current step; going back or jumping
// to an already reached step is not.
package wizard

import (
	"time"

	"github.com/marcus/soilnet/internal/countries"
	"github.com/marcus/soilnet/internal/validate"
)

// HighlightDuration is how long invalid fields stay highlighted after a
// rejected Next.
const HighlightDuration = 800 * time.Millisecond

// StepDef is one screen of a flow.
type StepDef struct {
	Title  string
	Fields []validate.Field
	// Review marks a read-only summary step with no fields of its own.
	Review bool
}

// Flow is a fixed sequence of steps.
type Flow struct {
	Name  string
	Steps []StepDef
}

// Len returns the number of steps (N). The success pseudo-step is N+1.
func (f *Flow) Len() int {
	return len(f.Steps)
}

// Fields returns every field of the flow in step order.
func (f *Flow) Fields() []validate.Field {
	var out []validate.Field
	for _, s := range f.Steps {
		out = append(out, s.Fields...)
	}
	return out
}

// State is a snapshot of a wizard session. Treat it as a value: Reduce never
// mutates the State it is given.
type State struct {
	Flow           *Flow
	Step           int // 1-based; Flow.Len()+1 once Done
	MaxReached     int
	Values         map[string]string
	Errors         []string
	highlighted    map[string]bool
	HighlightUntil time.Time
	Done           bool

	// countryInferred is set while the country came from the calling code.
	countryInferred bool
}

// New starts a flow at step 1.
func New(flow *Flow) State {
	return State{Flow: flow, Step: 1, MaxReached: 1, Values: map[string]string{}}
}

// Value returns a field value.
func (s State) Value(name string) string {
	return s.Values[name]
}

// Current returns the definition of the current step. It panics once Done.
func (s State) Current() StepDef {
	return s.Flow.Steps[s.Step-1]
}

// IsLast reports whether the current step is the final one before submission.
func (s State) IsLast() bool {
	return !s.Done && s.Step == s.Flow.Len()
}

// Highlighted returns the fields highlighted at now. The set empties itself
// once HighlightDuration has passed.
func (s State) Highlighted(now time.Time) map[string]bool {
	if len(s.highlighted) == 0 || !now.Before(s.HighlightUntil) {
		return nil
	}
	return s.highlighted
}

// Action is a state transition request.
type Action interface {
	apply(s State, now time.Time) State
}

// SetField stores a field value.
type SetField struct {
	Name  string
	Value string
}

// Next validates the current step and advances on a clean result.
type Next struct{}

// Previous moves back one step.
type Previous struct{}

// GoTo jumps to a step already reached, e.g. "edit this section" on a review step.
type GoTo struct {
	Step int
}

// SubmitSucceeded moves to the terminal success pseudo-step.
type SubmitSucceeded struct{}

// SubmitFailed keeps the step and entered data and surfaces the errors.
type SubmitFailed struct {
	Errors []string
}

// Reduce applies a to s. Once Done every action is a no-op.
func Reduce(s State, a Action, now time.Time) State {
	if s.Done {
		return s
	}
	return a.apply(s, now)
}

func (a SetField) apply(s State, _ time.Time) State {
	values := make(map[string]string, len(s.Values)+1)
	for k, v := range s.Values {
		values[k] = v
	}
	values[a.Name] = a.Value

	// The country follows the calling code until the user picks another one.
	switch a.Name {
	case FieldCountry:
		if a.Value != s.Values[FieldCountry] {
			s.countryInferred = false
		}
	case FieldPhoneCode:
		if values[FieldCountry] == "" || s.countryInferred {
			if c, ok := countries.FindByCallingCode(a.Value, countries.All()); ok {
				values[FieldCountry] = c.ISOCode
				s.countryInferred = true
			}
		}
	}

	s.Values = values
	return s
}

func (Next) apply(s State, now time.Time) State {
	res := validate.Step(s.Current().Fields, s.Values)
	if !res.OK() {
		s.Errors = res.Errors
		s.highlighted = res.Invalid
		s.HighlightUntil = now.Add(HighlightDuration)
		return s
	}
	s.Errors = nil
	s.highlighted = nil
	if s.Step < s.Flow.Len() {
		s.Step++
		if s.Step > s.MaxReached {
			s.MaxReached = s.Step
		}
	}
	return s
}

func (Previous) apply(s State, _ time.Time) State {
	if s.Step > 1 {
		s.Step--
	}
	s.Errors = nil
	return s
}

func (a GoTo) apply(s State, _ time.Time) State {
	step := a.Step
	if step < 1 {
		step = 1
	}
	if step > s.MaxReached {
		step = s.MaxReached
	}
	s.Step = step
	s.Errors = nil
	return s
}

func (SubmitSucceeded) apply(s State, _ time.Time) State {
	s.Step = s.Flow.Len() + 1
	s.Done = true
	s.Errors = nil
	s.highlighted = nil
	return s
}

func (a SubmitFailed) apply(s State, _ time.Time) State {
	s.Errors = append([]string(nil), a.Errors...)
	return s
}

// ValidateAll runs every step's rules, for use right before submission
// since steps may have been edited out of order from a review step.
func ValidateAll(s State) validate.Result {
	return validate.Step(s.Flow.Fields(), s.Values)
}

// Controller wraps a State for callers that prefer method calls over
// dispatching actions. It is not safe for concurrent use.
type Controller struct {
	state State
	now   func() time.Time
}

// NewController starts flow at step 1 using the wall clock.
func NewController(flow *Flow) *Controller {
	return &Controller{state: New(flow), now: time.Now}
}

// State returns the current snapshot.
func (c *Controller) State() State { return c.state }

// CurrentStep returns the 1-based step index.
func (c *Controller) CurrentStep() int { return c.state.Step }

// Dispatch applies an action and returns the new snapshot.
func (c *Controller) Dispatch(a Action) State {
	c.state = Reduce(c.state, a, c.now())
	return c.state
}

// Set stores a field value.
func (c *Controller) Set(name, value string) { c.Dispatch(SetField{Name: name, Value: value}) }

// Next advances when the current step validates and returns its errors otherwise.
func (c *Controller) Next() []string { return c.Dispatch(Next{}).Errors }

// Previous moves back one step.
func (c *Controller) Previous() { c.Dispatch(Previous{}) }

// GoTo jumps to a reached step.
func (c *Controller) GoTo(step int) { c.Dispatch(GoTo{Step: step}) }
