package config

import (
	_ "embed"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

//go:embed supported_boards.yaml
var supportedBoardsYAML []byte

// DefaultBoard is used when AcceleratorConfig names no board.
const DefaultBoard = "alveo-u55c"

// Board describes one supported accelerator board.
type Board struct {
	Name     string `yaml:"-"`
	Part     string `yaml:"part"`
	Platform string `yaml:"platform,omitempty"`
	Memory   Memory `yaml:"memory"`
}

// Memory describes the board's external memory.
type Memory struct {
	Type     string `yaml:"type"`
	Channels int    `yaml:"channels"`
}

var (
	boardsOnce sync.Once
	boards     map[string]Board
	boardsErr  error
)

// Boards returns the supported boards sorted by name.
func Boards() ([]Board, error) {
	table, err := boardTable()
	if err != nil {
		return nil, err
	}
	out := make([]Board, 0, len(table))
	for _, b := range table {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func boardTable() (map[string]Board, error) {
	boardsOnce.Do(func() {
		var raw map[string]Board
		if err := yaml.Unmarshal(supportedBoardsYAML, &raw); err != nil {
			boardsErr = errors.Wrap(err, "parse supported boards")
			return
		}
		boards = make(map[string]Board, len(raw))
		for name, b := range raw {
			b.Name = name
			boards[name] = b
		}
	})
	return boards, boardsErr
}

// AcceleratorConfig is the resolved accelerator section of a config.
type AcceleratorConfig struct {
	Board     Board
	NumKernel int
	NumThread int
	Batchsize int
}

// Platform is the board's platform, empty for non-Alveo boards.
func (a *AcceleratorConfig) Platform() string {
	if !strings.HasPrefix(a.Board.Name, "alveo") {
		return ""
	}
	return a.Board.Platform
}

// MemoryType is the board's memory type.
func (a *AcceleratorConfig) MemoryType() string { return a.Board.Memory.Type }

// MemoryChannelCount is the number of memory channels.
func (a *AcceleratorConfig) MemoryChannelCount() int { return a.Board.Memory.Channels }

// Accelerator resolves the AcceleratorConfig section. A Part that does not
// match the board is overridden with a warning; the returned Config is then
// a copy carrying the board's part, otherwise it is c itself.
func (c *Config) Accelerator(logger *slog.Logger) (*AcceleratorConfig, *Config, error) {
	sec := c.doc.AcceleratorConfig
	if sec == nil {
		return nil, nil, newConfigError("AcceleratorConfig", "missing section")
	}
	name := sec.Board
	if name == "" {
		name = DefaultBoard
	}
	table, err := boardTable()
	if err != nil {
		return nil, nil, err
	}
	board, ok := table[name]
	if !ok {
		return nil, nil, newConfigError("AcceleratorConfig.Board", "board %q is not supported", name)
	}

	acc := &AcceleratorConfig{
		Board:     board,
		NumKernel: sec.NumKernel,
		NumThread: sec.NumThread,
		Batchsize: sec.Batchsize,
	}

	out := c
	if c.doc.Part != board.Part {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("configured part does not match board, using board part",
			"part", c.doc.Part, "board", name, "board_part", board.Part)
		out, err = c.With(func(d *Document) { d.Part = board.Part })
		if err != nil {
			return nil, nil, err
		}
	}
	return acc, out, nil
}
