// Package validate implements the per-step field rules that gate wizard
// advancement. Every rule is checked; nothing stops at the first failure.
package validate

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/marcus/soilnet/internal/phone"
)

// Kind selects the rule set applied to a field.
type Kind int

const (
	KindText Kind = iota
	KindName
	KindEmail
	KindPhone
	KindPassword
	KindConfirm
	KindNumber
	KindChoice
	KindFile
)

// Limits shared by the rules.
const (
	MinNameLength     = 2
	MaxNameLength     = 50
	MaxEmailLength    = 254
	MinPhoneDigits    = 7
	MaxPhoneDigits    = 15
	MinPasswordLength = 8
	MaxNumber         = 1_000_000
	MaxDecimals       = 2
	MaxFileBytes      = 10 << 20
)

// ExactPhoneLength overrides the generic digit window for calling codes
// whose national numbers have one fixed length. Keys have no '+'.
var ExactPhoneLength = map[string]int{
	"92": 10,
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// numberPattern is a plain decimal; ParseFloat alone also takes NaN, Inf,
// exponents and a leading '+'.
var numberPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// Field describes one input of a wizard step.
type Field struct {
	Name     string
	Label    string
	Kind     Kind
	Required bool

	// MaxLength bounds KindText values (runes). Zero means unbounded.
	MaxLength int
	// Choices lists the allowed values of a KindChoice field.
	Choices []string
	// CodeField names the field holding the calling code of a KindPhone field.
	CodeField string
	// Ref names the field a KindConfirm field must equal.
	Ref string
	// Extensions lists allowed lowercase extensions (".pdf") of a KindFile field.
	Extensions []string
	// Max bounds KindNumber values. Zero means MaxNumber.
	Max float64
}

func (f Field) label() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// Result is the outcome of validating a step.
type Result struct {
	Errors  []string
	Invalid map[string]bool
}

// OK reports whether no rule was violated.
func (r Result) OK() bool {
	return len(r.Errors) == 0
}

// InvalidFields returns the invalid field names in step order.
func (r Result) InvalidFields(fields []Field) []string {
	var out []string
	for _, f := range fields {
		if r.Invalid[f.Name] {
			out = append(out, f.Name)
		}
	}
	return out
}

// Step validates every field against values and collects all violations in
// field order.
func Step(fields []Field, values map[string]string) Result {
	res := Result{Invalid: make(map[string]bool)}
	for _, f := range fields {
		errs := Check(f, values)
		if len(errs) > 0 {
			res.Errors = append(res.Errors, errs...)
			res.Invalid[f.Name] = true
		}
	}
	return res
}

// Check returns the violations of a single field.
func Check(f Field, values map[string]string) []string {
	v := strings.TrimSpace(values[f.Name])
	switch f.Kind {
	case KindName:
		return checkName(f, v)
	case KindEmail:
		return checkEmail(f, v)
	case KindPhone:
		return checkPhone(f, v, values[f.CodeField])
	case KindPassword:
		return checkPassword(f, values[f.Name])
	case KindConfirm:
		return checkConfirm(f, values[f.Name], values[f.Ref])
	case KindNumber:
		return checkNumber(f, v)
	case KindChoice:
		return checkChoice(f, v)
	case KindFile:
		return checkFile(f, v)
	default:
		return checkText(f, v)
	}
}

func required(f Field) string {
	return fmt.Sprintf("%s is required", f.label())
}

func checkName(f Field, v string) []string {
	if v == "" {
		return []string{required(f)}
	}
	var errs []string
	if n := utf8.RuneCountInString(v); n < MinNameLength || n > MaxNameLength {
		errs = append(errs, fmt.Sprintf("%s must be between %d and %d characters", f.label(), MinNameLength, MaxNameLength))
	}
	for _, r := range v {
		if !unicode.IsLetter(r) && r != ' ' && r != '-' && r != '\'' && r != '.' {
			errs = append(errs, fmt.Sprintf("%s may only contain letters, spaces, hyphens, apostrophes and periods", f.label()))
			break
		}
	}
	return errs
}

func checkEmail(f Field, v string) []string {
	if v == "" {
		return []string{required(f)}
	}
	var errs []string
	if len(v) > MaxEmailLength {
		errs = append(errs, fmt.Sprintf("%s must be at most %d characters", f.label(), MaxEmailLength))
	}
	if !emailPattern.MatchString(v) {
		errs = append(errs, fmt.Sprintf("%s must be a valid email address", f.label()))
	}
	return errs
}

func checkPhone(f Field, v, callingCode string) []string {
	if v == "" {
		return []string{required(f)}
	}
	var errs []string
	digitsOnly := true
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			digitsOnly = false
			break
		}
	}
	if !digitsOnly {
		errs = append(errs, fmt.Sprintf("%s must contain digits only", f.label()))
	}

	code := phone.Digits(callingCode)
	if exact, ok := ExactPhoneLength[code]; ok {
		if len(v) != exact {
			errs = append(errs, fmt.Sprintf("%s for +%s must be exactly %d digits", f.label(), code, exact))
		}
	} else if len(v) < MinPhoneDigits || len(v) > MaxPhoneDigits {
		errs = append(errs, fmt.Sprintf("%s must be between %d and %d digits", f.label(), MinPhoneDigits, MaxPhoneDigits))
	}
	return errs
}

func checkPassword(f Field, v string) []string {
	if v == "" {
		return []string{required(f)}
	}
	var upper, lower, digit bool
	for _, r := range v {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	var errs []string
	if utf8.RuneCountInString(v) < MinPasswordLength {
		errs = append(errs, fmt.Sprintf("%s must be at least %d characters", f.label(), MinPasswordLength))
	}
	if !upper {
		errs = append(errs, fmt.Sprintf("%s must contain an uppercase letter", f.label()))
	}
	if !lower {
		errs = append(errs, fmt.Sprintf("%s must contain a lowercase letter", f.label()))
	}
	if !digit {
		errs = append(errs, fmt.Sprintf("%s must contain a number", f.label()))
	}
	return errs
}

func checkConfirm(f Field, v, ref string) []string {
	if v == "" {
		return []string{required(f)}
	}
	if v != ref {
		return []string{"Passwords do not match"}
	}
	return nil
}

func checkNumber(f Field, v string) []string {
	if v == "" {
		if f.Required {
			return []string{required(f)}
		}
		return nil
	}
	n, err := ParseNumber(v)
	if err != nil {
		return []string{fmt.Sprintf("%s must be a number", f.label())}
	}
	limit := f.Max
	if limit == 0 {
		limit = MaxNumber
	}
	var errs []string
	if n < 0 {
		errs = append(errs, fmt.Sprintf("%s cannot be negative", f.label()))
	}
	if n > limit {
		errs = append(errs, fmt.Sprintf("%s must not exceed %s", f.label(), strconv.FormatFloat(limit, 'f', -1, 64)))
	}
	if i := strings.IndexByte(v, '.'); i >= 0 && len(v)-i-1 > MaxDecimals {
		errs = append(errs, fmt.Sprintf("%s may have at most %d decimal places", f.label(), MaxDecimals))
	}
	return errs
}

// ParseNumber parses a plain decimal such as "12" or "-3.5". NaN, infinities,
// exponents and signs other than a leading '-' are rejected.
func ParseNumber(v string) (float64, error) {
	if !numberPattern.MatchString(v) {
		return 0, fmt.Errorf("%q is not a plain decimal number", v)
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("%q is not a finite number", v)
	}
	return n, nil
}

func checkChoice(f Field, v string) []string {
	if v == "" {
		if f.Required {
			return []string{required(f)}
		}
		return nil
	}
	for _, c := range f.Choices {
		if c == v {
			return nil
		}
	}
	return []string{fmt.Sprintf("%s must be one of: %s", f.label(), strings.Join(f.Choices, ", "))}
}

func checkText(f Field, v string) []string {
	if v == "" {
		if f.Required {
			return []string{required(f)}
		}
		return nil
	}
	if f.MaxLength > 0 && utf8.RuneCountInString(v) > f.MaxLength {
		return []string{fmt.Sprintf("%s must be at most %d characters", f.label(), f.MaxLength)}
	}
	return nil
}

func checkFile(f Field, v string) []string {
	if v == "" {
		if f.Required {
			return []string{required(f)}
		}
		return nil
	}
	var errs []string
	if len(f.Extensions) > 0 {
		ext := strings.ToLower(filepath.Ext(v))
		allowed := false
		for _, e := range f.Extensions {
			if e == ext {
				allowed = true
				break
			}
		}
		if !allowed {
			errs = append(errs, fmt.Sprintf("%s must be one of: %s", f.label(), strings.Join(f.Extensions, ", ")))
		}
	}
	info, err := os.Stat(v)
	switch {
	case err != nil:
		errs = append(errs, fmt.Sprintf("%s: file not found", f.label()))
	case info.IsDir():
		errs = append(errs, fmt.Sprintf("%s must be a file, not a directory", f.label()))
	case info.Size() > MaxFileBytes:
		errs = append(errs, fmt.Sprintf("%s must be at most %d MB", f.label(), MaxFileBytes>>20))
	}
	return errs
}
