package manifest

import (
	"encoding/json"
	"fmt"
	"strings"
)

// NormalizeCommands converts the two raw validation-command fields into a
// canonical list of argv vectors. Accepted input shapes:
//
//	validationCommand:  "pytest tests/t.py -v"        (whitespace-split)
//	validationCommand:  ["pytest", "tests/t.py"]      (one argv)
//	validationCommands: ["pytest a", ["mypy", "src"]] (list of either)
//	validationCommands: [["pytest", "a"]]             (already normalized)
//
// The output is stable under re-normalization: encoding the result back to
// JSON and feeding it through validationCommands returns it unchanged.
func NormalizeCommands(command, commands json.RawMessage) ([][]string, error) {
	var out [][]string

	if len(command) > 0 && !isJSONNull(command) {
		argv, err := decodeCommand(command)
		if err != nil {
			return nil, fmt.Errorf("validationCommand: %w", err)
		}
		if len(argv) > 0 {
			out = append(out, argv)
		}
	}

	if len(commands) > 0 && !isJSONNull(commands) {
		var items []json.RawMessage
		if err := json.Unmarshal(commands, &items); err != nil {
			return nil, fmt.Errorf("validationCommands: expected array: %w", err)
		}
		for i, item := range items {
			argv, err := decodeCommand(item)
			if err != nil {
				return nil, fmt.Errorf("validationCommands[%d]: %w", i, err)
			}
			if len(argv) > 0 {
				out = append(out, argv)
			}
		}
	}

	return out, nil
}

// decodeCommand turns one raw command value into an argv vector. A JSON
// string is whitespace-split; a JSON array must hold only strings.
func decodeCommand(raw json.RawMessage) ([]string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return strings.Fields(s), nil
	}
	var argv []string
	if err := json.Unmarshal(raw, &argv); err != nil {
		return nil, fmt.Errorf("expected string or array of strings: %w", err)
	}
	return argv, nil
}

func isJSONNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

// Commands returns the manifest's normalized validation commands. A manifest
// that passed Load never fails normalization.
func (m *Manifest) Commands() [][]string {
	cmds, err := NormalizeCommands(m.ValidationCommand, m.ValidationCommands)
	if err != nil {
		return nil
	}
	return cmds
}

// DedupCommands removes exact-duplicate argv vectors, keeping first
// occurrence order. Chain aggregation relies on this staying stable.
func DedupCommands(cmds [][]string) [][]string {
	seen := make(map[string]bool, len(cmds))
	var out [][]string
	for _, argv := range cmds {
		key := strings.Join(argv, "\x00")
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, argv)
	}
	return out
}
