package store

import (
	"encoding/json"

	"github.com/cockroachdb/errors"

	"github.com/roach88/fpgalower/internal/ir"
)

// marshalAttributes converts a node's attributes to canonical JSON TEXT.
// Weight data is left out; the layer digest still covers it.
func marshalAttributes(n *ir.LayerNode) (string, error) {
	enc, err := ir.EncodeNode(n)
	if err != nil {
		return "", errors.Wrap(err, "marshal attributes")
	}
	data, err := ir.MarshalCanonical(enc["attributes"])
	if err != nil {
		return "", errors.Wrap(err, "marshal attributes")
	}
	return string(data), nil
}

// unmarshalAttributes decodes attributes written by marshalAttributes.
func unmarshalAttributes(s string) (map[string]any, error) {
	out := make(map[string]any)
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, errors.Wrap(err, "unmarshal attributes")
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
