package hook

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Input is the JSON document the host runtime writes to a hook's stdin.
// Fields absent for a given event are left zero.
type Input struct {
	HookEventName  string    `json:"hook_event_name"`
	SessionID      string    `json:"session_id"`
	CWD            string    `json:"cwd"`
	ToolName       string    `json:"tool_name"`
	ToolInput      ToolInput `json:"tool_input"`
	Prompt         string    `json:"prompt"`
	UserMessage    string    `json:"user_message"`
	StopHookActive bool      `json:"stop_hook_active"`
}

// ToolInput holds the tool arguments the hooks look at.
type ToolInput struct {
	Command     string `json:"command"`
	FilePath    string `json:"file_path"`
	Description string `json:"description"`
}

// maxInput bounds how much stdin is read.
const maxInput = 4 << 20

// ParseInput decodes hook input. Empty input decodes to a zero Input.
func ParseInput(r io.Reader) (Input, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxInput))
	if err != nil {
		return Input{}, fmt.Errorf("read hook input: %w", err)
	}
	var in Input
	if strings.TrimSpace(string(data)) == "" {
		return in, nil
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return Input{}, fmt.Errorf("decode hook input: %w", err)
	}
	return in, nil
}
