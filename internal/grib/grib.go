package grib

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Grid maps geographic coordinates onto fractional grid indices. It is
// satisfied by LatLonGrid and LambertGrid and matches the locator contract
// the domain package expects.
type Grid interface {
	Locate(lat, lon float64) (x, y float64, ok bool)
	Dims() (nx, ny int)
}

// Field is one decoded GRIB2 field: reference time, parameter identity,
// grid geometry, and values in storage order (NaN where bitmapped out).
type Field struct {
	RefTime           time.Time
	Discipline        uint8
	ParameterCategory uint8
	ParameterNumber   uint8
	Grid              Grid
	Values            []float64
}

// section numbers per the GRIB2 spec.
const (
	secIdentification = 1
	secGridDefinition = 3
	secProductDef     = 4
	secDataRepr       = 5
	secBitmap         = 6
	secData           = 7
)

// Decode parses the first field of a GRIB2 message. NCEP inventory subsets
// contain exactly one field per message, so decoding stops at the first
// data section.
func Decode(data []byte) (*Field, error) {
	if len(data) < 16 {
		return nil, fmt.Errorf("message too short: %d bytes", len(data))
	}
	if string(data[0:4]) != "GRIB" {
		return nil, fmt.Errorf("missing GRIB magic")
	}
	if edition := data[7]; edition != 2 {
		return nil, fmt.Errorf("unsupported GRIB edition %d", edition)
	}
	msgLen := binary.BigEndian.Uint64(data[8:16])
	if msgLen > uint64(len(data)) {
		return nil, fmt.Errorf("truncated message: header says %d bytes, have %d", msgLen, len(data))
	}

	field := &Field{Discipline: data[6]}

	var sec1, sec3, sec4, sec5, sec6 []byte

	pos := 16
	for {
		if pos+4 > len(data) {
			return nil, fmt.Errorf("unexpected end of message at offset %d", pos)
		}
		if string(data[pos:pos+4]) == "7777" {
			return nil, fmt.Errorf("message has no data section")
		}
		if pos+5 > len(data) {
			return nil, fmt.Errorf("unexpected end of message at offset %d", pos)
		}

		secLen := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		secNum := data[pos+4]
		if secLen < 5 || pos+secLen > len(data) {
			return nil, fmt.Errorf("section %d at offset %d: bad length %d", secNum, pos, secLen)
		}
		sec := data[pos : pos+secLen]

		switch secNum {
		case secIdentification:
			sec1 = sec
		case secGridDefinition:
			sec3 = sec
		case secProductDef:
			sec4 = sec
		case secDataRepr:
			sec5 = sec
		case secBitmap:
			sec6 = sec
		case secData:
			return decodeField(field, sec1, sec3, sec4, sec5, sec6, sec)
		}
		pos += secLen
	}
}

func decodeField(field *Field, sec1, sec3, sec4, sec5, sec6, sec7 []byte) (*Field, error) {
	if sec1 == nil || sec3 == nil || sec5 == nil {
		return nil, fmt.Errorf("data section before identification, grid or representation section")
	}

	var err error
	if field.RefTime, err = parseRefTime(sec1); err != nil {
		return nil, fmt.Errorf("section 1: %w", err)
	}
	if sec4 != nil && len(sec4) >= 11 {
		field.ParameterCategory = sec4[9]
		field.ParameterNumber = sec4[10]
	}
	if field.Grid, err = parseGrid(sec3); err != nil {
		return nil, fmt.Errorf("section 3: %w", err)
	}

	numPoints := int(binary.BigEndian.Uint32(sec3[6:10]))
	packed, err := unpack(sec5, sec7)
	if err != nil {
		return nil, fmt.Errorf("section 7: %w", err)
	}

	field.Values, err = applyBitmap(packed, sec6, numPoints)
	if err != nil {
		return nil, fmt.Errorf("section 6: %w", err)
	}
	return field, nil
}

func parseRefTime(sec1 []byte) (time.Time, error) {
	if len(sec1) < 19 {
		return time.Time{}, fmt.Errorf("too short: %d bytes", len(sec1))
	}
	year := int(binary.BigEndian.Uint16(sec1[12:14]))
	month := time.Month(sec1[14])
	day := int(sec1[15])
	hour := int(sec1[16])
	minute := int(sec1[17])
	second := int(sec1[18])
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("invalid reference time %d-%d-%d", year, month, day)
	}
	return time.Date(year, month, day, hour, minute, second, 0, time.UTC), nil
}

// applyBitmap spreads packed values into the full grid, filling NaN where
// the bitmap masks points out. With no bitmap the packed values are the
// grid (padded with NaN if the representation section undercounted).
func applyBitmap(packed []float64, sec6 []byte, numPoints int) ([]float64, error) {
	if sec6 == nil || len(sec6) < 6 || sec6[5] == 255 {
		if len(packed) < numPoints {
			out := make([]float64, numPoints)
			copy(out, packed)
			for i := len(packed); i < numPoints; i++ {
				out[i] = math.NaN()
			}
			return out, nil
		}
		return packed[:numPoints], nil
	}
	if sec6[5] != 0 {
		return nil, fmt.Errorf("unsupported bitmap indicator %d", sec6[5])
	}

	bits := sec6[6:]
	out := make([]float64, numPoints)
	k := 0
	for i := 0; i < numPoints; i++ {
		if i/8 >= len(bits) {
			return nil, fmt.Errorf("bitmap too short for %d points", numPoints)
		}
		if bits[i/8]&(1<<(7-uint(i%8))) != 0 {
			if k >= len(packed) {
				return nil, fmt.Errorf("bitmap selects more points than packed values (%d)", len(packed))
			}
			out[i] = packed[k]
			k++
		} else {
			out[i] = math.NaN()
		}
	}
	return out, nil
}

// signedSM32 reads a 32-bit sign-and-magnitude integer (GRIB convention:
// the top bit is the sign, not two's complement).
func signedSM32(b []byte) int32 {
	v := binary.BigEndian.Uint32(b)
	if v&0x80000000 != 0 {
		return -int32(v & 0x7fffffff)
	}
	return int32(v)
}

func signedSM16(b []byte) int16 {
	v := binary.BigEndian.Uint16(b)
	if v&0x8000 != 0 {
		return -int16(v & 0x7fff)
	}
	return int16(v)
}
