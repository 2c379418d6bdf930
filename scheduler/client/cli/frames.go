package cli

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/twitter/scd/scheduler/control"
)

// commandLine is the JSON form of a control command, one per input line.
type commandLine struct {
	Command string                 `json:"command"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
}

// responseLine reports one command's outcome.
type responseLine struct {
	Command  string                 `json:"command"`
	Response string                 `json:"response"`
	Fields   map[string]interface{} `json:"fields,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// parseCommand reads a JSON command line.
func parseCommand(text string) (control.Command, error) {
	var cl commandLine
	if err := json.Unmarshal([]byte(text), &cl); err != nil {
		return control.Command{}, fmt.Errorf("invalid command line %q: %v", text, err)
	}
	tag, err := control.ParseTag(strings.ToUpper(cl.Command))
	if err != nil {
		return control.Command{}, err
	}
	return control.NewCommand(tag, cl.Fields)
}

// parseFrame reads a hex encoded frame.
func parseFrame(text string) ([]byte, error) {
	frame, err := hex.DecodeString(strings.TrimSpace(text))
	if err != nil {
		return nil, fmt.Errorf("invalid frame %q: %v", text, err)
	}
	return frame, nil
}

func describeResponse(cmd control.Tag, r control.Response) responseLine {
	rl := responseLine{Command: cmd.String(), Response: r.Tag.String()}
	if err := r.Err(); err != nil {
		rl.Error = err.Error()
		return rl
	}
	fields, err := r.Fields()
	if err != nil {
		rl.Error = err.Error()
		return rl
	}
	if len(fields) > 0 {
		rl.Fields = fields
	}
	return rl
}
