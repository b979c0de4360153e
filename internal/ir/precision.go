package ir

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// PrecisionType is a sealed interface describing a numeric representation.
// Only FixedPrecisionType, IntegerPrecisionType, XnorPrecisionType and
// UnspecifiedPrecisionType implement it.
type PrecisionType interface {
	precision()
	// Bits is the total storage width.
	Bits() int
	// String is the backend-neutral spelling, e.g. "fixed<18,8>".
	String() string
}

// FixedPrecisionType is a fixed-point number with Integer integer bits
// (sign included when Signed) out of Width total bits.
type FixedPrecisionType struct {
	Width      int    `json:"width"`
	Integer    int    `json:"integer"`
	Signed     bool   `json:"signed"`
	Rounding   string `json:"rounding,omitempty"`   // "" = truncate
	Saturation string `json:"saturation,omitempty"` // "" = wrap
}

// NewFixed returns a signed fixed-point type.
func NewFixed(width, integer int) FixedPrecisionType {
	return FixedPrecisionType{Width: width, Integer: integer, Signed: true}
}

func (FixedPrecisionType) precision() {}

// Bits implements PrecisionType.
func (p FixedPrecisionType) Bits() int { return p.Width }

// Fractional returns the number of fractional bits.
func (p FixedPrecisionType) Fractional() int { return p.Width - p.Integer }

func (p FixedPrecisionType) String() string {
	prefix := "fixed"
	if !p.Signed {
		prefix = "ufixed"
	}
	return fmt.Sprintf("%s<%d,%d>", prefix, p.Width, p.Integer)
}

// IntegerPrecisionType is a plain integer of Width bits.
type IntegerPrecisionType struct {
	Width  int  `json:"width"`
	Signed bool `json:"signed"`
}

// NewInteger returns an integer type.
func NewInteger(width int, signed bool) IntegerPrecisionType {
	return IntegerPrecisionType{Width: width, Signed: signed}
}

func (IntegerPrecisionType) precision() {}

// Bits implements PrecisionType.
func (p IntegerPrecisionType) Bits() int { return p.Width }

func (p IntegerPrecisionType) String() string {
	if p.Signed {
		return fmt.Sprintf("int<%d>", p.Width)
	}
	return fmt.Sprintf("uint<%d>", p.Width)
}

// XnorPrecisionType is a 1-bit {-1,+1} encoding used by binary networks.
type XnorPrecisionType struct{}

func (XnorPrecisionType) precision() {}

// Bits implements PrecisionType.
func (XnorPrecisionType) Bits() int { return 1 }

func (XnorPrecisionType) String() string { return "xnor" }

// UnspecifiedPrecisionType marks a type left to precision inference ("auto").
type UnspecifiedPrecisionType struct{}

func (UnspecifiedPrecisionType) precision() {}

// Bits implements PrecisionType.
func (UnspecifiedPrecisionType) Bits() int { return 0 }

func (UnspecifiedPrecisionType) String() string { return "auto" }

// IsUnspecified reports whether p still needs inference.
func IsUnspecified(p PrecisionType) bool {
	if p == nil {
		return true
	}
	_, ok := p.(UnspecifiedPrecisionType)
	return ok
}

// NamedType binds a precision to the type name used by emitted code.
// Definition is the backend spelling, filled in by a type transformation pass.
type NamedType struct {
	Name       string        `json:"name"`
	Precision  PrecisionType `json:"-"`
	Definition string        `json:"definition,omitempty"`
}

// NewNamedType creates a NamedType without a backend definition.
func NewNamedType(name string, p PrecisionType) NamedType {
	return NamedType{Name: name, Precision: p}
}

var precisionPattern = regexp.MustCompile(`^\s*([a-z_]+)\s*(?:<\s*([^>]*)\s*>)?\s*$`)

// ParsePrecision parses the precision spellings accepted in configuration:
// fixed<W,I>, ufixed<W,I>, ap_fixed<W,I>, ap_ufixed<W,I>, ac_fixed<W,I,S>,
// int<W>, uint<W>, ap_int<W>, ap_uint<W>, ac_int<W,S>, xnor and auto.
// Optional trailing rounding/saturation modes of ap_fixed are kept verbatim.
func ParsePrecision(s string) (PrecisionType, error) {
	m := precisionPattern.FindStringSubmatch(strings.ToLower(s))
	if m == nil {
		return nil, errors.Newf("invalid precision %q", s)
	}
	name := m[1]
	var args []string
	if m[2] != "" {
		for _, a := range strings.Split(m[2], ",") {
			args = append(args, strings.TrimSpace(a))
		}
	}

	switch name {
	case "auto":
		return UnspecifiedPrecisionType{}, nil
	case "xnor":
		return XnorPrecisionType{}, nil
	case "fixed", "ap_fixed", "ufixed", "ap_ufixed":
		if len(args) < 2 {
			return nil, errors.Newf("invalid precision %q: expected <width,integer>", s)
		}
		w, i, err := parseWidthInteger(s, args[0], args[1])
		if err != nil {
			return nil, err
		}
		p := FixedPrecisionType{Width: w, Integer: i, Signed: !strings.Contains(name, "ufixed")}
		if len(args) > 2 {
			p.Rounding = strings.ToUpper(args[2])
		}
		if len(args) > 3 {
			p.Saturation = strings.ToUpper(args[3])
		}
		return p, nil
	case "ac_fixed":
		if len(args) < 2 {
			return nil, errors.Newf("invalid precision %q: expected <width,integer,signed>", s)
		}
		w, i, err := parseWidthInteger(s, args[0], args[1])
		if err != nil {
			return nil, err
		}
		signed := true
		if len(args) > 2 {
			signed, err = strconv.ParseBool(args[2])
			if err != nil {
				return nil, errors.Wrapf(err, "invalid precision %q", s)
			}
		}
		return FixedPrecisionType{Width: w, Integer: i, Signed: signed}, nil
	case "int", "uint", "ap_int", "ap_uint":
		if len(args) < 1 {
			return nil, errors.Newf("invalid precision %q: expected <width>", s)
		}
		w, err := strconv.Atoi(args[0])
		if err != nil || w <= 0 {
			return nil, errors.Newf("invalid precision %q: bad width", s)
		}
		return IntegerPrecisionType{Width: w, Signed: !strings.Contains(name, "uint")}, nil
	case "ac_int":
		if len(args) < 1 {
			return nil, errors.Newf("invalid precision %q: expected <width,signed>", s)
		}
		w, err := strconv.Atoi(args[0])
		if err != nil || w <= 0 {
			return nil, errors.Newf("invalid precision %q: bad width", s)
		}
		signed := true
		if len(args) > 1 {
			signed, err = strconv.ParseBool(args[1])
			if err != nil {
				return nil, errors.Wrapf(err, "invalid precision %q", s)
			}
		}
		return IntegerPrecisionType{Width: w, Signed: signed}, nil
	default:
		return nil, errors.Newf("invalid precision %q: unknown type %q", s, name)
	}
}

func parseWidthInteger(s, ws, is string) (int, int, error) {
	w, err := strconv.Atoi(ws)
	if err != nil || w <= 0 {
		return 0, 0, errors.Newf("invalid precision %q: bad width", s)
	}
	i, err := strconv.Atoi(is)
	if err != nil {
		return 0, 0, errors.Newf("invalid precision %q: bad integer bits", s)
	}
	return w, i, nil
}

// MustParsePrecision is like ParsePrecision but panics on error.
// Use only in tests or for compile-time constants.
func MustParsePrecision(s string) PrecisionType {
	p, err := ParsePrecision(s)
	if err != nil {
		panic(err)
	}
	return p
}
