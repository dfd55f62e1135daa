package grib

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// EncodeSpec describes a synthetic simple-packed lat/lon GRIB2 field.
// Encoding exists for fixtures and tests only; production code never writes
// GRIB. The encoded parameter is always TMP at 2 m above ground.
type EncodeSpec struct {
	RefTime    time.Time
	Ni, Nj     int
	Lat1, Lon1 float64 // first grid point (north-west corner), degrees
	Di, Dj     float64 // grid increments, degrees (j scans north to south)
	DecScale   int     // decimal scale factor D
	Values     []float64
}

// EncodeLatLonSimple builds a single-field GRIB2 message (template 3.0 grid,
// template 5.0 packing, no bitmap) that Decode round-trips.
func EncodeLatLonSimple(spec EncodeSpec) ([]byte, error) {
	if len(spec.Values) != spec.Ni*spec.Nj {
		return nil, fmt.Errorf("have %d values, grid is %dx%d", len(spec.Values), spec.Ni, spec.Nj)
	}

	// Simple packing with E=0: X = v*10^D - R, R = min(v*10^D).
	decScale := math.Pow(10, float64(spec.DecScale))
	scaled := make([]int64, len(spec.Values))
	minScaled := int64(math.MaxInt64)
	for i, v := range spec.Values {
		s := int64(math.Round(v * decScale))
		scaled[i] = s
		if s < minScaled {
			minScaled = s
		}
	}
	maxDelta := int64(0)
	for i, s := range scaled {
		scaled[i] = s - minScaled
		if scaled[i] > maxDelta {
			maxDelta = scaled[i]
		}
	}
	nbits := 0
	for maxDelta >= 1<<nbits {
		nbits++
	}

	var msg []byte

	// Section 0 (length patched at the end).
	msg = append(msg, 'G', 'R', 'I', 'B', 0, 0, 0 /* discipline */, 2)
	msg = appendUint64(msg, 0)

	// Section 1: identification.
	sec1 := make([]byte, 21)
	binary.BigEndian.PutUint32(sec1[0:4], 21)
	sec1[4] = 1
	binary.BigEndian.PutUint16(sec1[5:7], 7) // NCEP
	sec1[9], sec1[10], sec1[11] = 2, 1, 1
	t := spec.RefTime.UTC()
	binary.BigEndian.PutUint16(sec1[12:14], uint16(t.Year()))
	sec1[14] = byte(t.Month())
	sec1[15] = byte(t.Day())
	sec1[16] = byte(t.Hour())
	sec1[17] = byte(t.Minute())
	sec1[18] = byte(t.Second())
	sec1[20] = 1
	msg = append(msg, sec1...)

	// Section 3: lat/lon grid.
	sec3 := make([]byte, 72)
	binary.BigEndian.PutUint32(sec3[0:4], 72)
	sec3[4] = 3
	binary.BigEndian.PutUint32(sec3[6:10], uint32(spec.Ni*spec.Nj))
	binary.BigEndian.PutUint16(sec3[12:14], tmplLatLon)
	sec3[14] = 6 // spherical earth
	binary.BigEndian.PutUint32(sec3[30:34], uint32(spec.Ni))
	binary.BigEndian.PutUint32(sec3[34:38], uint32(spec.Nj))
	putSM32(sec3[46:50], int32(math.Round(spec.Lat1/microDeg)))
	putSM32(sec3[50:54], int32(math.Round(wrap360(spec.Lon1)/microDeg)))
	sec3[54] = 0x30 // increments given
	putSM32(sec3[55:59], int32(math.Round((spec.Lat1-spec.Dj*float64(spec.Nj-1))/microDeg)))
	putSM32(sec3[59:63], int32(math.Round(wrap360(spec.Lon1+spec.Di*float64(spec.Ni-1))/microDeg)))
	binary.BigEndian.PutUint32(sec3[63:67], uint32(math.Round(spec.Di/microDeg)))
	binary.BigEndian.PutUint32(sec3[67:71], uint32(math.Round(spec.Dj/microDeg)))
	sec3[71] = 0x00 // +i, -j: west-east, north-south
	msg = append(msg, sec3...)

	// Section 4: product definition, template 4.0, TMP at 2 m above ground.
	sec4 := make([]byte, 34)
	binary.BigEndian.PutUint32(sec4[0:4], 34)
	sec4[4] = 4
	binary.BigEndian.PutUint16(sec4[7:9], 0)
	sec4[9] = 0  // parameter category: temperature
	sec4[10] = 0 // parameter number: TMP
	sec4[11] = 2
	sec4[17] = 1   // time unit: hour
	sec4[22] = 103 // fixed surface: height above ground
	binary.BigEndian.PutUint32(sec4[24:28], 2)
	sec4[28] = 255
	msg = append(msg, sec4...)

	// Section 5: simple packing.
	sec5 := make([]byte, 21)
	binary.BigEndian.PutUint32(sec5[0:4], 21)
	sec5[4] = 5
	binary.BigEndian.PutUint32(sec5[5:9], uint32(len(spec.Values)))
	binary.BigEndian.PutUint16(sec5[9:11], tmplSimple)
	binary.BigEndian.PutUint32(sec5[11:15], math.Float32bits(float32(minScaled)))
	putSM16(sec5[15:17], 0)
	putSM16(sec5[17:19], int16(spec.DecScale))
	sec5[19] = byte(nbits)
	msg = append(msg, sec5...)

	// Section 6: no bitmap.
	msg = append(msg, 0, 0, 0, 6, 6, 255)

	// Section 7: packed data.
	packed := packBits(scaled, nbits)
	sec7 := make([]byte, 5, 5+len(packed))
	binary.BigEndian.PutUint32(sec7[0:4], uint32(5+len(packed)))
	sec7[4] = 7
	sec7 = append(sec7, packed...)
	msg = append(msg, sec7...)

	msg = append(msg, '7', '7', '7', '7')
	binary.BigEndian.PutUint64(msg[8:16], uint64(len(msg)))
	return msg, nil
}

// InventoryFor renders the one-record ".idx" inventory for a message built
// by EncodeLatLonSimple.
func InventoryFor(spec EncodeSpec) string {
	return fmt.Sprintf("1:0:d=%s:TMP:2 m above ground:anl:\n", spec.RefTime.UTC().Format("2006010215"))
}

func packBits(vals []int64, nbits int) []byte {
	if nbits == 0 {
		return nil
	}
	out := make([]byte, (len(vals)*nbits+7)/8)
	pos := 0
	for _, v := range vals {
		for b := nbits - 1; b >= 0; b-- {
			if v>>uint(b)&1 != 0 {
				out[pos/8] |= 1 << (7 - uint(pos%8))
			}
			pos++
		}
	}
	return out
}

func appendUint64(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}

func putSM32(b []byte, v int32) {
	if v < 0 {
		binary.BigEndian.PutUint32(b, uint32(-v)|0x80000000)
		return
	}
	binary.BigEndian.PutUint32(b, uint32(v))
}

func putSM16(b []byte, v int16) {
	if v < 0 {
		binary.BigEndian.PutUint16(b, uint16(-v)|0x8000)
		return
	}
	binary.BigEndian.PutUint16(b, uint16(v))
}
