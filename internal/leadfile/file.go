package leadfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Format is the encoding of a lead file.
type Format int

const (
	FormatCSV Format = iota
	FormatJSON
)

// FormatOf picks the format from the file extension. Anything but .json is CSV.
func FormatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatCSV
}

// Load reads a file into loosely typed records, the shape step-output
// imports take.
func Load(ctx context.Context, path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "leadfile: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	if FormatOf(path) == FormatJSON {
		return ReadJSON(ctx, f)
	}
	rows, err := ReadCSV(ctx, f, CSVOptions{LazyQuotes: true})
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		rec := make(map[string]any, len(row))
		for k, v := range row {
			rec[k] = v
		}
		out[i] = rec
	}
	return out, nil
}

// LoadStrings reads a file into string records, the shape lead imports
// take. JSON scalars are stringified and nested values re-encoded.
func LoadStrings(ctx context.Context, path string) ([]map[string]string, error) {
	if FormatOf(path) == FormatCSV {
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "leadfile: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		return ReadCSV(ctx, f, CSVOptions{LazyQuotes: true})
	}

	rows, err := Load(ctx, path)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]string, len(rows))
	for i, row := range rows {
		rec := make(map[string]string, len(row))
		for k, v := range row {
			rec[k] = text(v)
		}
		out[i] = rec
	}
	return out, nil
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return fmt.Sprint(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// Remap renames record keys per mapping (source column to lead column).
// Unmapped columns are kept; a mapping to "" drops the column.
func Remap(rows []map[string]string, mapping map[string]string) []map[string]string {
	if len(mapping) == 0 {
		return rows
	}
	out := make([]map[string]string, len(rows))
	for i, row := range rows {
		rec := make(map[string]string, len(row))
		for k, v := range row {
			to, ok := mapping[k]
			switch {
			case !ok:
				rec[k] = v
			case to != "":
				rec[to] = v
			}
		}
		out[i] = rec
	}
	return out
}
