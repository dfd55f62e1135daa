package grib

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildComplexSec5 assembles a template 5.2/5.3 representation section.
func buildComplexSec5(tmpl uint16, numVals uint32, ref float32, e, d int16, nbits byte, ng uint32,
	refGroupWidth, bitsGroupWidth byte, refGroupLen uint32, lenIncr byte, lastGroupLen uint32, bitsGroupLen byte,
	order, extraOctets byte) []byte {

	n := 47
	if tmpl == tmplComplexSpatial {
		n = 49
	}
	sec5 := make([]byte, n)
	binary.BigEndian.PutUint32(sec5[0:4], uint32(n))
	sec5[4] = 5
	binary.BigEndian.PutUint32(sec5[5:9], numVals)
	binary.BigEndian.PutUint16(sec5[9:11], tmpl)
	binary.BigEndian.PutUint32(sec5[11:15], math.Float32bits(ref))
	putSM16(sec5[15:17], e)
	putSM16(sec5[17:19], d)
	sec5[19] = nbits
	sec5[21] = 1 // general group splitting
	sec5[22] = 0 // no missing value management
	binary.BigEndian.PutUint32(sec5[31:35], ng)
	sec5[35] = refGroupWidth
	sec5[36] = bitsGroupWidth
	binary.BigEndian.PutUint32(sec5[37:41], refGroupLen)
	sec5[41] = lenIncr
	binary.BigEndian.PutUint32(sec5[42:46], lastGroupLen)
	sec5[46] = bitsGroupLen
	if tmpl == tmplComplexSpatial {
		sec5[47] = order
		sec5[48] = extraOctets
	}
	return sec5
}

func TestUnpack_ComplexSpatialOrder1(t *testing.T) {
	// Target values X = [10, 12, 11, 13] with R=0, E=0, D=0.
	// First-order differences [2, -1, 2], minimum -1, so the stored
	// sequence after the header is [_, 3, 0, 3] in one group (ref 0,
	// width 2 bits).
	sec5 := buildComplexSec5(tmplComplexSpatial, 4, 0, 0, 0,
		2,    // nbits for group references
		1,    // one group
		0, 3, // group width: ref 0, 3 bits each
		0, 1, 4, 8, // group length: ref 0, incr 1, last 4, 8 bits each
		1, 1, // order 1, 1 extra octet
	)

	sec7 := []byte{
		0, 0, 0, 0, 7, // length+number header (length unused by unpack)
		0x0A,       // h1 = 10
		0x81,       // diff minimum = -1 (sign-and-magnitude)
		0x00,       // group reference (2 bits) + byte padding
		0x40,       // group width 010 (=2) + padding
		0x04,       // group length byte (overridden by lastGroupLen)
		0b00110011, // packed 2-bit values: 0, 3, 0, 3
	}
	binary.BigEndian.PutUint32(sec7[0:4], uint32(len(sec7)))

	vals, err := unpack(sec5, sec7)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 12, 11, 13}, vals)
}

func TestUnpack_ComplexSpatialOrder2(t *testing.T) {
	// Target X = [5, 7, 10, 14]: second differences are [1, 1], min 1,
	// stored [_, _, 0, 0]. Group width 0 bits with reference 0 covers it.
	sec5 := buildComplexSec5(tmplComplexSpatial, 4, 0, 0, 0,
		2,
		1,
		0, 3,
		0, 1, 4, 8,
		2, 1,
	)

	sec7 := []byte{
		0, 0, 0, 0, 7,
		0x05, // h1 = 5
		0x07, // h2 = 7
		0x01, // diff minimum = 1
		0x00, // group reference + padding
		0x00, // group width 000 (=0) + padding
		0x04, // group length byte
	}
	binary.BigEndian.PutUint32(sec7[0:4], uint32(len(sec7)))

	vals, err := unpack(sec5, sec7)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 7, 10, 14}, vals)
}

func TestUnpack_ComplexWithoutSpatialDifferencing(t *testing.T) {
	// Template 5.2: one group of four 2-bit values [0,1,2,3] with ref 20.
	sec5 := buildComplexSec5(tmplComplex, 4, 0, 0, 0,
		5, // nbits for group references
		1,
		0, 3,
		0, 1, 4, 8,
		0, 0,
	)

	sec7 := []byte{
		0, 0, 0, 0, 7,
		0xA0,       // group reference 10100 (=20) + padding
		0x40,       // group width 010 (=2) + padding
		0x04,       // group length byte
		0b00011011, // packed values 0, 1, 2, 3
	}
	binary.BigEndian.PutUint32(sec7[0:4], uint32(len(sec7)))

	vals, err := unpack(sec5, sec7)
	require.NoError(t, err)
	assert.Equal(t, []float64{20, 21, 22, 23}, vals)
}

func TestUnpack_ComplexAppliesScaling(t *testing.T) {
	// R=100, E=1, D=1: Y = (100 + X*2) / 10.
	sec5 := buildComplexSec5(tmplComplex, 2, 100, 1, 1,
		3,
		1,
		0, 3,
		0, 1, 2, 8,
		0, 0,
	)

	sec7 := []byte{
		0, 0, 0, 0, 7,
		0x00,       // group reference 0
		0x40,       // group width 2
		0x02,       // group length byte
		0b01100000, // packed values 1, 2
	}
	binary.BigEndian.PutUint32(sec7[0:4], uint32(len(sec7)))

	vals, err := unpack(sec5, sec7)
	require.NoError(t, err)
	require.Len(t, vals, 2)
	assert.InDelta(t, 10.2, vals[0], 1e-9)
	assert.InDelta(t, 10.4, vals[1], 1e-9)
}

func TestUnpack_UnsupportedTemplate(t *testing.T) {
	sec5 := make([]byte, 21)
	binary.BigEndian.PutUint32(sec5[0:4], 21)
	sec5[4] = 5
	binary.BigEndian.PutUint16(sec5[9:11], 40) // JPEG2000
	_, err := unpack(sec5, []byte{0, 0, 0, 5, 7})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template 5.40")
}

func TestUnpack_MissingValueManagementUnsupported(t *testing.T) {
	sec5 := buildComplexSec5(tmplComplex, 1, 0, 0, 0, 1, 1, 0, 1, 0, 1, 1, 8, 0, 0)
	sec5[22] = 1
	_, err := unpack(sec5, []byte{0, 0, 0, 5, 7})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing value management")
}

func TestBitReader_ReadAcrossBytes(t *testing.T) {
	br := newBitReader([]byte{0b10110100, 0b11000000})
	v, err := br.read(3)
	require.NoError(t, err)
	assert.Equal(t, uint64(0b101), v)

	v, err = br.read(7)
	require.NoError(t, err)
	assert.Equal(t, uint64(0b1010011), v)
}

func TestBitReader_Exhausted(t *testing.T) {
	br := newBitReader([]byte{0xFF})
	_, err := br.read(9)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exhausted")
}

func TestBitReader_Align(t *testing.T) {
	br := newBitReader([]byte{0xFF, 0x01})
	_, err := br.read(3)
	require.NoError(t, err)
	br.align()

	v, err := br.read(8)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)
}

func TestBitReader_SignedSM(t *testing.T) {
	br := newBitReader([]byte{0x81, 0x05})
	v, err := br.readSignedSM(8)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), v)

	v, err = br.readSignedSM(8)
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)
}
