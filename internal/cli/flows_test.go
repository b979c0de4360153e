package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flowsResponse struct {
	Status string      `json:"status"`
	Data   FlowsResult `json:"data"`
	Error  *CLIError   `json:"error"`
}

func TestFlowsJSON(t *testing.T) {
	cmd, out, _ := testCommand()

	require.NoError(t, runFlows(&RootOptions{Format: "json"}, "", cmd))

	var resp flowsResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "oneAPI", resp.Data.Backend)
	assert.Equal(t, "oneapi:ip", resp.Data.DefaultFlow)
	assert.Equal(t, "oneapi:write", resp.Data.WriterFlow)
	assert.Empty(t, resp.Data.Resolved)
	assert.Empty(t, resp.Data.Unused)

	byName := make(map[string]FlowInfo)
	for _, f := range resp.Data.Flows {
		byName[f.Name] = f
	}
	require.Contains(t, byName, "oneapi:ip")
	require.Contains(t, byName, "oneapi:write")
	require.Contains(t, byName, "optimize")
	assert.Contains(t, byName["oneapi:write"].Requires, "oneapi:ip")
	assert.Contains(t, byName["oneapi:write"].Passes, "make_stamp")
	assert.Contains(t, byName["optimize"].Passes, "eliminate_linear_activation")
}

func TestFlowsResolve(t *testing.T) {
	cmd, out, _ := testCommand()

	require.NoError(t, runFlows(&RootOptions{Format: "json"}, "oneapi:ip", cmd))

	var resp flowsResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	order := resp.Data.Resolved
	require.NotEmpty(t, order)

	index := func(name string) int {
		for i, p := range order {
			if p == name {
				return i
			}
		}
		t.Fatalf("pass %s not in resolved order", name)
		return -1
	}
	assert.Less(t, index("eliminate_linear_activation"), index("oneapi:init_base_layer"))
	assert.Less(t, index("oneapi:init_base_layer"), index("oneapi:init_dense"))
	assert.Less(t, index("oneapi:init_dense"), index("oneapi:dense_config_template"))
	assert.NotContains(t, order, "make_stamp")
}

func TestFlowsText(t *testing.T) {
	cmd, out, _ := testCommand()

	require.NoError(t, runFlows(&RootOptions{Format: "text"}, "oneapi:write", cmd))

	output := out.String()
	assert.Contains(t, output, "Backend oneAPI: default flow oneapi:ip, writer flow oneapi:write")
	assert.Contains(t, output, "REQUIRES")
	assert.Contains(t, output, "Pass order of oneapi:write:")
	assert.Contains(t, output, "  1. ")
	assert.Contains(t, output, "make_stamp")
}

func TestFlowsTextVerbose(t *testing.T) {
	cmd, out, _ := testCommand()

	require.NoError(t, runFlows(&RootOptions{Format: "text", Verbose: true}, "", cmd))

	output := out.String()
	assert.Contains(t, output, "\noneapi:write:\n")
	assert.Contains(t, output, "  make_stamp\n")
}

func TestFlowsUnknown(t *testing.T) {
	cmd, out, _ := testCommand()

	err := runFlows(&RootOptions{Format: "json"}, "oneapi:nope", cmd)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp flowsResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeUnknownFlow, resp.Error.Code)
}
