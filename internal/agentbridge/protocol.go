package agentbridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// ResultFDEnv names the environment variable that tells an agent which file
// descriptor carries its structured result.
const ResultFDEnv = "SEOFLOW_RESULT_FD"

var ErrNoResult = errors.New("no JSON result line")

// ParseTrailingJSON takes the last non-empty line of stdout and decodes it as a
// JSON object. Every earlier line is free-form progress and is ignored.
func ParseTrailingJSON(stdout string) (map[string]any, json.RawMessage, error) {
	lines := strings.Split(strings.ReplaceAll(stdout, "\r\n", "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		return parseObject([]byte(line))
	}
	return nil, nil, ErrNoResult
}

func parseObject(raw []byte) (map[string]any, json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, nil, ErrNoResult
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, nil, err
	}
	return out, json.RawMessage(raw), nil
}
