package cli

import (
	"encoding/json"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoardsJSON(t *testing.T) {
	cmd, out, _ := testCommand()

	require.NoError(t, runBoards(&RootOptions{Format: "json"}, cmd))

	var resp struct {
		Status string      `json:"status"`
		Data   []BoardInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	require.NotEmpty(t, resp.Data)
	assert.True(t, sort.SliceIsSorted(resp.Data, func(i, j int) bool {
		return resp.Data[i].Name < resp.Data[j].Name
	}))

	var u55c *BoardInfo
	for i := range resp.Data {
		if resp.Data[i].Name == "alveo-u55c" {
			u55c = &resp.Data[i]
		}
	}
	require.NotNil(t, u55c)
	assert.Equal(t, BoardInfo{
		Name:           "alveo-u55c",
		Part:           "xcu55c-fsvh2892-2L-e",
		Platform:       "xilinx_u55c_gen3x16_xdma_3_202210_1",
		MemoryType:     "hbm",
		MemoryChannels: 32,
	}, *u55c)
}

func TestBoardsText(t *testing.T) {
	cmd, out, _ := testCommand()

	require.NoError(t, runBoards(&RootOptions{Format: "text"}, cmd))

	output := out.String()
	assert.Contains(t, output, "BOARD")
	assert.Contains(t, output, "CHANNELS")
	assert.Contains(t, output, "alveo-u55c")
	assert.Contains(t, output, "pynq-z2")
}
