package grib

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Data representation templates supported by unpack.
const (
	tmplSimple         = 0
	tmplComplex        = 2
	tmplComplexSpatial = 3
)

// unpack decodes section 7 using the parameters of section 5. The result
// is the packed value sequence, before any bitmap expansion.
func unpack(sec5, sec7 []byte) ([]float64, error) {
	if len(sec5) < 21 {
		return nil, fmt.Errorf("representation section too short: %d bytes", len(sec5))
	}
	numVals := int(binary.BigEndian.Uint32(sec5[5:9]))
	tmpl := int(binary.BigEndian.Uint16(sec5[9:11]))

	ref := float64(math.Float32frombits(binary.BigEndian.Uint32(sec5[11:15])))
	binScale := math.Pow(2, float64(signedSM16(sec5[15:17])))
	decScale := math.Pow(10, -float64(signedSM16(sec5[17:19])))
	nbits := int(sec5[19])

	scale := func(x float64) float64 { return (ref + x*binScale) * decScale }

	switch tmpl {
	case tmplSimple:
		return unpackSimple(sec7, numVals, nbits, scale)
	case tmplComplex, tmplComplexSpatial:
		return unpackComplex(sec5, sec7, numVals, nbits, tmpl, scale)
	default:
		return nil, fmt.Errorf("unsupported data representation template 5.%d", tmpl)
	}
}

func unpackSimple(sec7 []byte, numVals, nbits int, scale func(float64) float64) ([]float64, error) {
	out := make([]float64, numVals)
	if nbits == 0 {
		// Constant field: every value is the reference.
		for i := range out {
			out[i] = scale(0)
		}
		return out, nil
	}

	br := newBitReader(sec7[5:])
	for i := range out {
		x, err := br.read(nbits)
		if err != nil {
			return nil, fmt.Errorf("value %d of %d: %w", i+1, numVals, err)
		}
		out[i] = scale(float64(x))
	}
	return out, nil
}

// unpackComplex decodes complex packing (template 5.2) and complex packing
// with spatial differencing (5.3).
func unpackComplex(sec5, sec7 []byte, numVals, nbits, tmpl int, scale func(float64) float64) ([]float64, error) {
	if len(sec5) < 47 {
		return nil, fmt.Errorf("complex representation section too short: %d bytes", len(sec5))
	}
	if mgmt := sec5[22]; mgmt != 0 {
		return nil, fmt.Errorf("unsupported missing value management %d", mgmt)
	}

	ng := int(binary.BigEndian.Uint32(sec5[31:35]))
	refGroupWidth := int(sec5[35])
	bitsGroupWidth := int(sec5[36])
	refGroupLen := int(binary.BigEndian.Uint32(sec5[37:41]))
	lenIncrement := int(sec5[41])
	lastGroupLen := int(binary.BigEndian.Uint32(sec5[42:46]))
	bitsGroupLen := int(sec5[46])

	spatialOrder := 0
	extraOctets := 0
	if tmpl == tmplComplexSpatial {
		if len(sec5) < 49 {
			return nil, fmt.Errorf("spatial differencing parameters missing")
		}
		spatialOrder = int(sec5[47])
		extraOctets = int(sec5[48])
		if spatialOrder < 0 || spatialOrder > 2 {
			return nil, fmt.Errorf("unsupported spatial differencing order %d", spatialOrder)
		}
	}

	br := newBitReader(sec7[5:])

	// Spatial differencing header: the initial field values and the overall
	// minimum of the differences, each in extraOctets octets.
	initial := make([]int64, spatialOrder)
	var diffMin int64
	if spatialOrder > 0 {
		if extraOctets < 1 || extraOctets > 4 {
			return nil, fmt.Errorf("unsupported extra descriptor width %d octets", extraOctets)
		}
		for i := range initial {
			v, err := br.readSignedSM(extraOctets * 8)
			if err != nil {
				return nil, fmt.Errorf("spatial differencing header: %w", err)
			}
			initial[i] = v
		}
		v, err := br.readSignedSM(extraOctets * 8)
		if err != nil {
			return nil, fmt.Errorf("spatial differencing minimum: %w", err)
		}
		diffMin = v
	}

	// Group reference values, then widths, then lengths; each array is
	// padded to a byte boundary.
	refs := make([]int64, ng)
	for g := range refs {
		v, err := br.read(nbits)
		if err != nil {
			return nil, fmt.Errorf("group %d reference: %w", g, err)
		}
		refs[g] = int64(v)
	}
	br.align()

	widths := make([]int, ng)
	for g := range widths {
		v, err := br.read(bitsGroupWidth)
		if err != nil {
			return nil, fmt.Errorf("group %d width: %w", g, err)
		}
		widths[g] = refGroupWidth + int(v)
	}
	br.align()

	lengths := make([]int, ng)
	for g := range lengths {
		v, err := br.read(bitsGroupLen)
		if err != nil {
			return nil, fmt.Errorf("group %d length: %w", g, err)
		}
		lengths[g] = refGroupLen + lenIncrement*int(v)
	}
	if ng > 0 {
		lengths[ng-1] = lastGroupLen
	}
	br.align()

	// Packed values, group by group.
	raw := make([]int64, 0, numVals)
	for g := 0; g < ng; g++ {
		for i := 0; i < lengths[g]; i++ {
			if widths[g] == 0 {
				raw = append(raw, refs[g])
				continue
			}
			v, err := br.read(widths[g])
			if err != nil {
				return nil, fmt.Errorf("group %d value %d: %w", g, i, err)
			}
			raw = append(raw, refs[g]+int64(v))
		}
	}
	if len(raw) < numVals {
		return nil, fmt.Errorf("groups yield %d values, want %d", len(raw), numVals)
	}
	raw = raw[:numVals]

	// Undo spatial differencing: the first values are carried verbatim in
	// the header, the rest are differences offset by diffMin.
	switch spatialOrder {
	case 1:
		if numVals > 0 {
			raw[0] = initial[0]
		}
		for j := 1; j < numVals; j++ {
			raw[j] = raw[j] + diffMin + raw[j-1]
		}
	case 2:
		if numVals > 0 {
			raw[0] = initial[0]
		}
		if numVals > 1 {
			raw[1] = initial[1]
		}
		for j := 2; j < numVals; j++ {
			raw[j] = raw[j] + diffMin + 2*raw[j-1] - raw[j-2]
		}
	}

	out := make([]float64, numVals)
	for i, v := range raw {
		out[i] = scale(float64(v))
	}
	return out, nil
}

// bitReader reads big-endian bit fields from a byte slice.
type bitReader struct {
	data []byte
	pos  int // bit offset
}

func newBitReader(data []byte) *bitReader {
	return &bitReader{data: data}
}

func (r *bitReader) read(n int) (uint64, error) {
	if n == 0 {
		return 0, nil
	}
	if n > 64 {
		return 0, fmt.Errorf("bit field of %d bits", n)
	}
	if r.pos+n > len(r.data)*8 {
		return 0, fmt.Errorf("bit stream exhausted at bit %d (need %d more)", r.pos, n)
	}

	var v uint64
	for i := 0; i < n; i++ {
		byteIdx := (r.pos + i) / 8
		bitIdx := 7 - uint((r.pos+i)%8)
		v = v<<1 | uint64(r.data[byteIdx]>>bitIdx&1)
	}
	r.pos += n
	return v, nil
}

// readSignedSM reads an n-bit sign-and-magnitude integer.
func (r *bitReader) readSignedSM(n int) (int64, error) {
	v, err := r.read(n)
	if err != nil {
		return 0, err
	}
	signBit := uint64(1) << uint(n-1)
	if v&signBit != 0 {
		return -int64(v &^ signBit), nil
	}
	return int64(v), nil
}

// align advances to the next byte boundary.
func (r *bitReader) align() {
	if rem := r.pos % 8; rem != 0 {
		r.pos += 8 - rem
	}
}
