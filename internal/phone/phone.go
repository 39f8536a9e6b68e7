// Package phone splits stored "+<code><digits>" phone strings into calling
// code and subscriber number.
//
// Parsing never fails. Input that cannot be attributed to a country is
// assigned to countries.Default; the Outcome on the result says which path
// produced it so callers that care can tell a real match from a fallback.
package phone

import (
	"regexp"
	"sort"
	"strings"

	"github.com/marcus/soilnet/internal/countries"
)

// MinSubscriberDigits is the shortest remainder accepted after a calling code.
const MinSubscriberDigits = 7

// Outcome records which parsing path produced a Parsed value.
type Outcome int

const (
	// OutcomeEmpty means the input was empty.
	OutcomeEmpty Outcome = iota
	// OutcomeMatched means a reference country's calling code prefixed the input.
	OutcomeMatched
	// OutcomeGenericSplit means no country matched but the input had an
	// E.164-like shape and was split on the first 1-4 digits.
	OutcomeGenericSplit
	// OutcomeDefaulted means the default calling code was assumed.
	OutcomeDefaulted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEmpty:
		return "empty"
	case OutcomeMatched:
		return "matched"
	case OutcomeGenericSplit:
		return "generic"
	case OutcomeDefaulted:
		return "defaulted"
	}
	return "unknown"
}

// Parsed is a phone number split into its two parts.
type Parsed struct {
	CallingCode      string  `json:"calling_code"` // with leading '+'
	SubscriberNumber string  `json:"subscriber_number"`
	Outcome          Outcome `json:"-"`
}

// String rebuilds the persisted form.
func (p Parsed) String() string {
	return Join(p.CallingCode, p.SubscriberNumber)
}

// Ok reports whether the calling code was read from the input rather than assumed.
func (p Parsed) Ok() bool {
	return p.Outcome == OutcomeMatched || p.Outcome == OutcomeGenericSplit
}

var (
	genericSplit = regexp.MustCompile(`^\+(\d{1,4})(\d{7,15})$`)
	nonDigit     = regexp.MustCompile(`\D`)
	nonPlus      = regexp.MustCompile(`\+`)
)

// DefaultCallingCode is the calling code assumed for unattributable input.
func DefaultCallingCode() string {
	return countries.Default.PrefixedCode()
}

// Parse splits fullPhone using the reference list. The longest matching
// calling code wins, since codes are not fixed width and a short code can
// be a prefix of a longer one ("+1" and "+1242").
func Parse(fullPhone string, list []countries.Record) Parsed {
	fullPhone = strings.TrimSpace(fullPhone)
	if fullPhone == "" {
		return Parsed{CallingCode: DefaultCallingCode(), Outcome: OutcomeEmpty}
	}

	if !strings.HasPrefix(fullPhone, "+") {
		return Parsed{
			CallingCode:      DefaultCallingCode(),
			SubscriberNumber: Digits(fullPhone),
			Outcome:          OutcomeDefaulted,
		}
	}

	for _, r := range byCodeLengthDesc(list) {
		prefix := r.PrefixedCode()
		if !strings.HasPrefix(fullPhone, prefix) {
			continue
		}
		rest := fullPhone[len(prefix):]
		if len(rest) >= MinSubscriberDigits && allDigits(rest) {
			return Parsed{CallingCode: prefix, SubscriberNumber: rest, Outcome: OutcomeMatched}
		}
	}

	if m := genericSplit.FindStringSubmatch(fullPhone); m != nil {
		return Parsed{CallingCode: "+" + m[1], SubscriberNumber: m[2], Outcome: OutcomeGenericSplit}
	}

	return Parsed{
		CallingCode:      DefaultCallingCode(),
		SubscriberNumber: nonPlus.ReplaceAllString(fullPhone, ""),
		Outcome:          OutcomeDefaulted,
	}
}

// InferCountry returns the country owning fullPhone's calling code, or
// countries.Default when none does.
func InferCountry(fullPhone string, list []countries.Record) countries.Record {
	p := Parse(fullPhone, list)
	if r, ok := countries.FindByCallingCode(p.CallingCode, list); ok {
		return r
	}
	return countries.Default
}

// Join builds "+<code><subscriber>" with no separators. callingCode may be
// given with or without its '+'.
func Join(callingCode, subscriber string) string {
	return "+" + Digits(callingCode) + Digits(subscriber)
}

// Digits returns s with every non-digit removed.
func Digits(s string) string {
	return nonDigit.ReplaceAllString(s, "")
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

func byCodeLengthDesc(list []countries.Record) []countries.Record {
	sorted := make([]countries.Record, len(list))
	copy(sorted, list)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].CallingCode) > len(sorted[j].CallingCode)
	})
	return sorted
}
