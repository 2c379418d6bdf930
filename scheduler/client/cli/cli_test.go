package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execCLI(t *testing.T, stdin string, args ...string) (string, error) {
	cl, err := NewSimpleCLIClient()
	require.NoError(t, err)
	c := cl.(*SchedCLIClient)

	out := &bytes.Buffer{}
	c.RootCmd.SetOut(out)
	c.RootCmd.SetErr(&bytes.Buffer{})
	c.RootCmd.SetIn(strings.NewReader(stdin))
	c.RootCmd.SetArgs(append([]string{"--log_level", "error"}, args...))
	err = c.Exec()
	return out.String(), err
}

func responses(t *testing.T, out string) []responseLine {
	var rls []responseLine
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		var rl responseLine
		require.NoError(t, json.Unmarshal([]byte(line), &rl), line)
		rls = append(rls, rl)
	}
	return rls
}

func TestValidateConfig(t *testing.T) {
	out, err := execCLI(t, "", "validate_config")
	require.NoError(t, err)
	assert.Contains(t, out, "local.memory: ok (2 queues, 2 node groups")

	_, err = execCLI(t, "", "--config", `{"Algorithm": {"Type": "manual"}}`, "validate_config")
	assert.Error(t, err)

	_, err = execCLI(t, "", "--config", "no.such.preset", "validate_config")
	assert.Error(t, err)
}

func TestShowConfig(t *testing.T) {
	out, err := execCLI(t, "", "--config", "local.redis", "show_config", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"Addr": "localhost:6379"`)

	out, err = execCLI(t, "", "show_config")
	require.NoError(t, err)
	assert.Contains(t, out, "ControlJSONConfig")
}

func TestEncodeDecode(t *testing.T) {
	out, err := execCLI(t, "", "encode", "cancel", `{"session": 3}`)
	require.NoError(t, err)
	frame := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(frame, "04"), frame)

	out, err = execCLI(t, "", "decode", frame)
	require.NoError(t, err)
	assert.JSONEq(t, `{"command": "CANCEL", "fields": {"session": 3}}`, out)

	out, err = execCLI(t, "", "encode", "QUEUE_LIST")
	require.NoError(t, err)
	assert.Equal(t, "0c", strings.TrimSpace(out))

	_, err = execCLI(t, "", "encode", "LAUNCH")
	assert.Error(t, err)
	_, err = execCLI(t, "", "encode", "CANCEL", "{")
	assert.Error(t, err)
	_, err = execCLI(t, "", "decode", "zz")
	assert.Error(t, err)
}

func TestServe(t *testing.T) {
	input := strings.Join([]string{
		`# comment lines and blank lines are skipped`,
		``,
		`{"command": "SESSION_REQUEST", "fields": {"endpoint": "cli", "minNodes": 1}}`,
		`{"command": "STATUS", "fields": {"session": 99}}`,
		`0c`,
		`{"command": "LAUNCH"}`,
		`not hex`,
	}, "\n")
	out, err := execCLI(t, input, "serve")
	require.NoError(t, err)

	rls := responses(t, out)
	require.Len(t, rls, 5)

	assert.Equal(t, responseLine{Command: "SESSION_REQUEST", Response: "OK",
		Fields: map[string]interface{}{"session": float64(1)}}, rls[0])

	assert.Equal(t, "STATUS", rls[1].Command)
	assert.Equal(t, "ERROR", rls[1].Response)
	assert.NotEmpty(t, rls[1].Error)

	assert.Equal(t, "QUEUE_LIST", rls[2].Command)
	assert.Equal(t, "OK", rls[2].Response)
	queues, ok := rls[2].Fields["queues"].([]interface{})
	require.True(t, ok)
	assert.Len(t, queues, 2)

	assert.Equal(t, "INVALID", rls[3].Command)
	assert.Equal(t, "INVALID", rls[4].Command)
}

func TestServeFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commands")
	require.NoError(t, os.WriteFile(path, []byte(`{"command": "QUEUE_LIST"}`+"\n"), 0644))

	out, err := execCLI(t, "", "serve", "--input", path, "--stats")
	require.NoError(t, err)
	assert.Contains(t, out, `"response":"OK"`)
	assert.Contains(t, out, "controlCommandCounter")

	_, err = execCLI(t, "", "serve", "--input", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
