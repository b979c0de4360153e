package ir

import (
	"strconv"
	"strings"
)

// Weight storage classes assigned by the BRAM registration pass.
const (
	StorageRegister = "register"
	StorageBRAM     = "bram"
)

// WeightVariable is a named tensor attached to a layer node.
type WeightVariable struct {
	// Name is the role of the tensor within the layer ("weight", "bias", ...).
	Name string
	// VarName is the emission-facing name template; "{index}" is replaced
	// with the owning node's index.
	VarName string
	Data    *Tensor
	Type    NamedType
	// Quantizer is carried from the source model, nil when unquantized.
	Quantizer *Quantizer
	// Compression selects a sparse/indexed representation.
	Compression bool
	// IndexPrecision is the index width of a compressed representation.
	IndexPrecision PrecisionType
	Storage        string
}

// ResolvedVarName substitutes the node index into VarName.
func (w *WeightVariable) ResolvedVarName(index int) string {
	return strings.ReplaceAll(w.VarName, "{index}", strconv.Itoa(index))
}

// Clone returns a deep copy of the variable.
func (w *WeightVariable) Clone() *WeightVariable {
	c := *w
	if w.Data != nil {
		c.Data = w.Data.Clone()
	}
	if w.Quantizer != nil {
		q := *w.Quantizer
		c.Quantizer = &q
	}
	return &c
}
