package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/fpgalower/internal/config"
)

// BoardInfo describes one supported accelerator board.
type BoardInfo struct {
	Name           string `json:"name"`
	Part           string `json:"part"`
	Platform       string `json:"platform,omitempty"`
	MemoryType     string `json:"memory_type"`
	MemoryChannels int    `json:"memory_channels"`
}

// NewBoardsCommand creates the boards command.
func NewBoardsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "boards",
		Short: "List supported accelerator boards",
		Long: `List the boards accepted by AcceleratorConfig.Board, with the part
each one forces and its external memory.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBoards(rootOpts, cmd)
		},
	}
}

func runBoards(opts *RootOptions, cmd *cobra.Command) error {
	formatter := formatterFor(opts, cmd)

	boards, err := config.Boards()
	if err != nil {
		return formatter.Fail("reading board table failed", err)
	}
	infos := make([]BoardInfo, 0, len(boards))
	for _, b := range boards {
		infos = append(infos, BoardInfo{
			Name:           b.Name,
			Part:           b.Part,
			Platform:       b.Platform,
			MemoryType:     b.Memory.Type,
			MemoryChannels: b.Memory.Channels,
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(infos)
	}

	rows := make([][]string, 0, len(infos))
	for _, b := range infos {
		rows = append(rows, []string{b.Name, b.Part, b.Platform, b.MemoryType, strconv.Itoa(b.MemoryChannels)})
	}
	formatter.Table([]string{"Board", "Part", "Platform", "Memory", "Channels"}, rows)
	return nil
}
