// Package input expands id arguments given as - (stdin) or @file, so ids
// can be piped from another soilnet command.
package input

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ExpandArgs replaces "-" with the lines read from stdin and "@path" with the
// lines of path. Stdin may be read once. Blank lines and "#" comments are
// skipped, and only the first field of each line is kept, so the output of a
// listing command can be piped straight in.
func ExpandArgs(args []string, stdin io.Reader) ([]string, error) {
	var out []string
	stdinUsed := false
	for _, a := range args {
		switch {
		case a == "-":
			if stdinUsed {
				return nil, fmt.Errorf("stdin given more than once")
			}
			stdinUsed = true
			out = append(out, ReadIDs(stdin)...)
		case strings.HasPrefix(a, "@") && len(a) > 1:
			f, err := os.Open(a[1:])
			if err != nil {
				return nil, fmt.Errorf("read ids: %w", err)
			}
			out = append(out, ReadIDs(f)...)
			f.Close()
		default:
			out = append(out, a)
		}
	}
	return out, nil
}

// ReadIDs returns the first field of every non-empty, non-comment line.
func ReadIDs(r io.Reader) []string {
	var ids []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		ids = append(ids, fields[0])
	}
	return ids
}
