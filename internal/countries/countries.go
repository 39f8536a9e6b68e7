// Package countries holds the country / calling-code reference data used to
// split stored phone numbers and to infer a user's country from them.
package countries

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// DefaultFlag is returned by Flag for ISO codes with no known glyph.
const DefaultFlag = "🏳"

// Record is a single entry of the reference table.
type Record struct {
	ISOCode     string `json:"iso_code" yaml:"iso_code"`
	Name        string `json:"name" yaml:"name"`
	CallingCode string `json:"calling_code" yaml:"calling_code"` // digits only, no '+'
	Flag        string `json:"flag" yaml:"flag"`
}

// PrefixedCode returns the calling code with a leading '+'.
func (r Record) PrefixedCode() string {
	return "+" + r.CallingCode
}

// Default is the country used whenever a phone number cannot be attributed.
var Default = Record{ISOCode: "PK", Name: "Pakistan", CallingCode: "92", Flag: "🇵🇰"}

var (
	loadOnce sync.Once
	records  []Record
	flags    map[string]string
)

// All returns the reference table. It is built once per process and must not
// be modified by callers.
func All() []Record {
	loadOnce.Do(load)
	return records
}

// Flag returns the flag glyph for an ISO 3166-1 alpha-2 code, or DefaultFlag.
func Flag(isoCode string) string {
	loadOnce.Do(load)
	if f, ok := flags[strings.ToUpper(isoCode)]; ok {
		return f
	}
	return DefaultFlag
}

// ByISO returns the record with the given ISO code.
func ByISO(isoCode string) (Record, bool) {
	isoCode = strings.ToUpper(strings.TrimSpace(isoCode))
	for _, r := range All() {
		if r.ISOCode == isoCode {
			return r, true
		}
	}
	return Record{}, false
}

// FindByCallingCode strips any '+' from code and returns the first record in
// list order whose calling code is exactly equal. Several territories share
// a calling code; the first one in the list is the representative.
func FindByCallingCode(code string, list []Record) (Record, bool) {
	code = strings.ReplaceAll(strings.TrimSpace(code), "+", "")
	if code == "" {
		return Record{}, false
	}
	for _, r := range list {
		if r.CallingCode == code {
			return r, true
		}
	}
	return Record{}, false
}

func load() {
	regions := phonenumbers.GetSupportedRegions()
	names := display.English.Regions()

	type entry struct {
		rec  Record
		main bool
	}
	entries := make([]entry, 0, len(regions))
	flags = make(map[string]string, len(regions))

	for iso := range regions {
		code := phonenumbers.GetCountryCodeForRegion(iso)
		if code == 0 {
			continue
		}
		name := iso
		if reg, err := language.ParseRegion(iso); err == nil {
			if n := names.Name(reg); n != "" {
				name = n
			}
		}
		glyph := flagGlyph(iso)
		flags[iso] = glyph
		entries = append(entries, entry{
			rec: Record{
				ISOCode:     iso,
				Name:        name,
				CallingCode: strconv.Itoa(code),
				Flag:        glyph,
			},
			main: phonenumbers.GetRegionCodeForCountryCode(code) == iso,
		})
	}

	// Main regions first so shared codes resolve to the country that owns them.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].main != entries[j].main {
			return entries[i].main
		}
		return entries[i].rec.Name < entries[j].rec.Name
	})

	records = make([]Record, len(entries))
	for i, e := range entries {
		records[i] = e.rec
	}
}

// flagGlyph maps a two-letter code to its pair of regional indicator symbols.
func flagGlyph(iso string) string {
	if len(iso) != 2 {
		return DefaultFlag
	}
	var b strings.Builder
	for _, c := range strings.ToUpper(iso) {
		if c < 'A' || c > 'Z' {
			return DefaultFlag
		}
		b.WriteRune(0x1F1E6 + (c - 'A'))
	}
	return b.String()
}
