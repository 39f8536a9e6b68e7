package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/pflag"
)

// docFlag collects repeatable --doc kind=path values.
type docFlag struct {
	allowed []string
	paths   map[string]string
}

var _ pflag.Value = (*docFlag)(nil)

func newDocFlag(allowed ...string) *docFlag {
	return &docFlag{allowed: allowed, paths: map[string]string{}}
}

func (d *docFlag) String() string {
	kinds := make([]string, 0, len(d.paths))
	for k := range d.paths {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = k + "=" + d.paths[k]
	}
	return strings.Join(parts, ",")
}

func (d *docFlag) Set(v string) error {
	kind, path, ok := strings.Cut(v, "=")
	kind = strings.TrimSpace(kind)
	path = strings.TrimSpace(path)
	if !ok || kind == "" || path == "" {
		return fmt.Errorf("expected kind=path, got %q", v)
	}
	if !d.known(kind) {
		return fmt.Errorf("unknown document kind %q (want one of %s)", kind, strings.Join(d.allowed, ", "))
	}
	if _, dup := d.paths[kind]; dup {
		return fmt.Errorf("document %q given twice", kind)
	}
	d.paths[kind] = path
	return nil
}

func (d *docFlag) Type() string { return "kind=path" }

func (d *docFlag) known(kind string) bool {
	for _, a := range d.allowed {
		if a == kind {
			return true
		}
	}
	return false
}
