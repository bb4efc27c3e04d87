package codegen

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"recorder/internal/action"
)

// jsonlHeader is the first line of a JSONL recording.
type jsonlHeader struct {
	BrowserName    string         `json:"browserName"`
	LaunchOptions  map[string]any `json:"launchOptions"`
	ContextOptions map[string]any `json:"contextOptions"`
}

// NewJSONL returns the machine-readable generator. Its output can be read
// back with ReadJSONL and replayed.
func NewJSONL() Generator {
	return &stepGenerator{
		id:       "jsonl",
		label:    "JSONL",
		group:    "Other",
		language: "jsonl",
		header: func(_ []action.Record, opts Options) string {
			browser := opts.BrowserName
			if browser == "" {
				browser = "chromium"
			}
			data, _ := json.Marshal(jsonlHeader{
				BrowserName:    browser,
				LaunchOptions:  map[string]any{"headless": opts.Headless},
				ContextOptions: map[string]any{},
			})
			return string(data)
		},
		step: func(rec action.Record, _ Options) (string, error) {
			data, err := json.Marshal(rec)
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
	}
}

// ReadJSONL decodes a JSONL recording, skipping the header line.
func ReadJSONL(r io.Reader) ([]action.Record, error) {
	var out []action.Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var probe struct {
			Name        string `json:"name"`
			BrowserName string `json:"browserName"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if probe.Name == "" && probe.BrowserName != "" {
			continue
		}
		var rec action.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
