package lowering

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/roach88/fpgalower/internal/ir"
)

// ShapeError reports a violated shape precondition of a layer.
type ShapeError struct {
	Layer   string
	Kind    ir.LayerKind
	Message string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("layer %s (%s): %s", e.Layer, e.Kind, e.Message)
}

// MissingAttributeError reports a required attribute that is unset.
type MissingAttributeError struct {
	Layer     string
	Kind      ir.LayerKind
	Attribute string
	Reason    string
}

func (e *MissingAttributeError) Error() string {
	msg := fmt.Sprintf("layer %s (%s): required attribute %q is not set", e.Layer, e.Kind, e.Attribute)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// IsShapeError reports whether err is a ShapeError.
func IsShapeError(err error) bool {
	var se *ShapeError
	return errors.As(err, &se)
}

// IsMissingAttributeError reports whether err is a MissingAttributeError.
func IsMissingAttributeError(err error) bool {
	var me *MissingAttributeError
	return errors.As(err, &me)
}

func shapeErrorf(n *ir.LayerNode, format string, args ...any) *ShapeError {
	return &ShapeError{Layer: n.Name, Kind: n.Kind, Message: fmt.Sprintf(format, args...)}
}
