package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrecision(t *testing.T) {
	tests := []struct {
		in   string
		want PrecisionType
	}{
		{"fixed<16,6>", FixedPrecisionType{Width: 16, Integer: 6, Signed: true}},
		{"ap_fixed<18, 8>", FixedPrecisionType{Width: 18, Integer: 8, Signed: true}},
		{"ufixed<8,0>", FixedPrecisionType{Width: 8, Integer: 0, Signed: false}},
		{"ap_fixed<16,6,AP_RND,AP_SAT>", FixedPrecisionType{Width: 16, Integer: 6, Signed: true, Rounding: "AP_RND", Saturation: "AP_SAT"}},
		{"ac_fixed<10,4,false>", FixedPrecisionType{Width: 10, Integer: 4, Signed: false}},
		{"int<8>", IntegerPrecisionType{Width: 8, Signed: true}},
		{"uint<1>", IntegerPrecisionType{Width: 1, Signed: false}},
		{"ap_uint<16>", IntegerPrecisionType{Width: 16, Signed: false}},
		{"ac_int<12,false>", IntegerPrecisionType{Width: 12, Signed: false}},
		{"xnor", XnorPrecisionType{}},
		{"auto", UnspecifiedPrecisionType{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePrecision(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePrecision_Invalid(t *testing.T) {
	for _, in := range []string{"", "float", "fixed<16>", "int<0>", "fixed<a,b>", "ac_int<4,maybe>"} {
		_, err := ParsePrecision(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestPrecision_String(t *testing.T) {
	assert.Equal(t, "fixed<18,8>", NewFixed(18, 8).String())
	assert.Equal(t, "ufixed<8,2>", FixedPrecisionType{Width: 8, Integer: 2}.String())
	assert.Equal(t, "uint<1>", NewInteger(1, false).String())
	assert.Equal(t, "int<4>", NewInteger(4, true).String())
	assert.Equal(t, 10, NewFixed(18, 8).Fractional())
}

func TestIsUnspecified(t *testing.T) {
	assert.True(t, IsUnspecified(nil))
	assert.True(t, IsUnspecified(UnspecifiedPrecisionType{}))
	assert.False(t, IsUnspecified(NewFixed(16, 6)))
}

func TestQuantizer_Precision(t *testing.T) {
	q := &Quantizer{Name: "quantized_bits", Bits: 8, Integer: 2, Signed: true}
	assert.Equal(t, FixedPrecisionType{Width: 8, Integer: 2, Signed: true}, q.Precision())

	b := &Quantizer{Name: "binary", Bits: 1}
	assert.Equal(t, XnorPrecisionType{}, b.Precision())
}

func TestKindMatches(t *testing.T) {
	assert.True(t, KindMatches(KindSoftmax, KindActivation))
	assert.True(t, KindMatches(KindSoftmax, KindLayer))
	assert.True(t, KindMatches(KindDense, KindDense))
	assert.False(t, KindMatches(KindActivation, KindSoftmax))
	assert.False(t, KindMatches(KindDense, KindConv1D))
	assert.Equal(t, []LayerKind{KindSoftmax, KindActivation, KindLayer}, KindSoftmax.Lineage())
	assert.False(t, LayerKind("Bogus").IsValid())
}
