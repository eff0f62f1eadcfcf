package main

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseLeadNumbers reads positional lead numbers. Commas are accepted as
// separators too, so "1,2 3" yields [1 2 3].
func parseLeadNumbers(args []string) ([]int64, error) {
	var out []int64
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			n, err := strconv.ParseInt(part, 10, 64)
			if err != nil || n <= 0 {
				return nil, eris.Errorf("invalid lead number %q", part)
			}
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nil, eris.New("at least one lead number is required")
	}
	return out, nil
}

// parseMapping reads "source=target" column mappings. An empty target
// drops the source column.
func parseMapping(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		from, to, ok := strings.Cut(p, "=")
		from = strings.TrimSpace(from)
		if !ok || from == "" {
			return nil, eris.Errorf("invalid mapping %q (want source=target)", p)
		}
		out[from] = strings.TrimSpace(to)
	}
	return out, nil
}
