package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/marcus/soilnet/internal/config"
	"github.com/marcus/soilnet/internal/suggest"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// flagError adds "did you mean" suggestions to unknown flag errors.
func flagError(cmd *cobra.Command, err error) error {
	msg := err.Error()
	name, ok := strings.CutPrefix(msg, "unknown flag: ")
	if !ok {
		if _, short, found := strings.Cut(msg, "unknown shorthand flag: "); found {
			name = strings.Fields(short)[0]
			ok = true
		}
	}
	if !ok {
		return err
	}
	name = strings.Trim(name, "'")

	if hint := suggest.FlagHint(name); hint != "" {
		return fmt.Errorf("%w (%s)", err, hint)
	}
	var known []string
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if !f.Hidden {
			known = append(known, "--"+f.Name)
		}
	})
	if s := suggest.Closest(name, known); len(s) > 0 {
		return fmt.Errorf("%w (did you mean %s?)", err, strings.Join(s, ", "))
	}
	return err
}

// checkConfigKey rejects keys config does not know, suggesting near misses.
func checkConfigKey(key string) error {
	if slices.Contains(config.Keys, key) {
		return nil
	}
	if s := suggest.Closest(key, config.Keys); len(s) > 0 {
		return fmt.Errorf("unknown config key %q (did you mean %s?)", key, strings.Join(s, ", "))
	}
	return fmt.Errorf("unknown config key %q (known keys: %s)", key, strings.Join(config.Keys, ", "))
}
