package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testConfig   = "testdata/gatesched.toml"
	diamond      = "../graphspec/testdata/diamond.yaml"
	loops        = "../graphspec/testdata/loops.cue"
	incomparable = "testdata/incomparable.yaml"
	openLoop     = "testdata/open_loop.yaml"
)

// execute runs the root command with the test configuration and returns
// stdout, stderr and the exit code.
func execute(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(append([]string{"--config", testConfig}, args...))
	err := cmd.Execute()
	return out.String(), errOut.String(), GetExitCode(err)
}

func decode(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "gatesched", cmd.Use)
	assert.Contains(t, cmd.Long, "basic blocks")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"schedule", "retype", "verify", "compile", "history"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err, "Command %s should exist", name)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestInvalidFormat(t *testing.T) {
	_, _, code := execute(t, "--format", "xml", "verify", diamond)
	assert.Equal(t, ExitFailure, code)
}

func TestSchedule_Text(t *testing.T) {
	out, _, code := execute(t, "schedule", diamond)
	require.Equal(t, ExitSuccess, code, out)
	assert.Contains(t, out, "diamond: 6 blocks")
	assert.Contains(t, out, "B0 idom=B0 preds=[]")
}

func TestSchedule_JSON(t *testing.T) {
	out, _, code := execute(t, "--format", "json", "schedule", diamond)
	require.Equal(t, ExitSuccess, code, out)

	var resp struct {
		Status string         `json:"status"`
		Data   ScheduleResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "scheduled", resp.Data.Outcome)
	require.Len(t, resp.Data.Blocks, 6)

	var merge *BlockView
	for i := range resp.Data.Blocks {
		b := &resp.Data.Blocks[i]
		if b.Gates[len(b.Gates)-1] == "m" {
			merge = b
		}
	}
	require.NotNil(t, merge, "anchor is emitted last")
	assert.Len(t, merge.Preds, 2)
	assert.Contains(t, merge.Gates, "phi")
}

func TestSchedule_Builtin(t *testing.T) {
	out, _, code := execute(t, "schedule", "builtin:array_push/2", "--retype=false")
	require.Equal(t, ExitSuccess, code, out)
	assert.Contains(t, out, "array_push/2:")
	assert.Contains(t, out, "0 conversion(s)")

	out, _, code = execute(t, "schedule", "builtin:array_push/9")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, out, ErrCodeFixture)

	_, _, code = execute(t, "schedule", "builtin:array_pop/1")
	assert.Equal(t, ExitCommandError, code)
}

func TestSchedule_Fallback(t *testing.T) {
	out, _, code := execute(t, "--format", "json", "schedule", incomparable)
	assert.Equal(t, ExitFailure, code)
	resp := decode(t, out)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeFallback, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "INCOMPARABLE_INPUTS")
	assert.Contains(t, resp.Error.Message, "(gate ")
}

func TestSchedule_Rejected(t *testing.T) {
	out, _, code := execute(t, "schedule", openLoop)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, out, "Error ["+ErrCodeInvalidGraph+"]")
	assert.Contains(t, out, "gate loop")
}

func TestSchedule_MissingFixture(t *testing.T) {
	out, _, code := execute(t, "schedule", "testdata/nope.yaml")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, out, ErrCodeNotFound)
}

func TestSchedule_BadConfig(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "gatesched.toml")
	require.NoError(t, os.WriteFile(cfg, []byte("[scheduler]\nspeed = 3\n"), 0o644))

	out, _, code := execute(t, "--config", cfg, "schedule", diamond)
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, out, ErrCodeConfig)
}

func TestVerify(t *testing.T) {
	out, _, code := execute(t, "verify", diamond)
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "✓ diamond: 18 gates, no errors")

	out, _, code = execute(t, "--format", "json", "verify", openLoop)
	assert.Equal(t, ExitFailure, code)
	resp := decode(t, out)
	assert.Equal(t, "V110", resp.Error.Code)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, data["valid"])
}

func TestRetype(t *testing.T) {
	out, _, code := execute(t, "retype", loops+"#count_up")
	require.Equal(t, ExitSuccess, code, out)
	assert.Contains(t, out, "count_up:")
	assert.Contains(t, out, "conversion(s)")
	assert.Contains(t, out, "CheckTaggedNumberAndConvertToFloat64")

	out, _, code = execute(t, "--format", "json", "retype", "--no-convert", loops+"#count_up")
	require.Equal(t, ExitSuccess, code, out)
	var resp struct {
		Data RetypeResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Empty(t, resp.Data.Conversions)
	assert.Contains(t, resp.Data.Types, TypedGate{Gate: "step", Type: "FLOAT64"})
}

func TestCompileAndHistory(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")

	out, _, code := execute(t, "compile", "--db", db, diamond, incomparable, "builtin:array_push/1")
	assert.Equal(t, ExitFailure, code, "one unit fell back")
	assert.Contains(t, out, "2 scheduled, 1 fallback, 0 rejected")

	out, _, code = execute(t, "compile", "--db", db, diamond)
	require.Equal(t, ExitSuccess, code, out)

	out, _, code = execute(t, "history", "--db", db)
	require.Equal(t, ExitSuccess, code, out)
	assert.Contains(t, out, "incomparable")
	assert.Contains(t, out, "error=INCOMPARABLE_INPUTS")

	out, _, code = execute(t, "--format", "json", "history", "--db", db, "diamond")
	require.Equal(t, ExitSuccess, code, out)
	var resp struct {
		Data []struct {
			Seq     int64  `json:"seq"`
			Outcome string `json:"outcome"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, int64(1), resp.Data[0].Seq)
	assert.Equal(t, int64(4), resp.Data[1].Seq, "sequence continues across invocations")

	out, _, code = execute(t, "history", "--db", db, "--latest", "diamond")
	require.Equal(t, ExitSuccess, code, out)
	assert.Contains(t, out, "B0 idom=B0", "dump stored because [scheduler] dump is set")

	_, _, code = execute(t, "history", "--db", db, "--latest", "nothing")
	assert.Equal(t, ExitFailure, code)

	_, _, code = execute(t, "history", "--db", filepath.Join(t.TempDir(), "missing.db"))
	assert.Equal(t, ExitCommandError, code)
}
