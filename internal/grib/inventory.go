// Package grib reads the subset of GRIB2 used by NCEP model output: the
// sidecar ".idx" inventory format, lat/lon and Lambert conformal grids
// (templates 3.0 and 3.30), and simple or complex packing (templates 5.0,
// 5.2 and 5.3). It is not a general GRIB implementation; unsupported
// templates produce explicit errors naming the template number.
package grib

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrRecordNotFound is returned when an inventory lookup matches no record.
var ErrRecordNotFound = errors.New("record not found in inventory")

// InventoryRecord is one line of a wgrib2-style ".idx" inventory, e.g.
//
//	71:38651583:d=2024042612:TMP:2 m above ground:anl:
type InventoryRecord struct {
	Number    int
	Offset    int64
	RefTime   string // raw "d=" token, e.g. "2024042612"
	Parameter string // e.g. "TMP"
	Level     string // e.g. "2 m above ground"
	Range     string // e.g. "anl" or "1 hour fcst"
}

// Inventory is an ordered list of records for one GRIB2 file.
type Inventory []InventoryRecord

// ParseInventory reads an ".idx" inventory. Blank lines are skipped;
// malformed lines are an error because a corrupt inventory would produce
// wrong byte ranges.
func ParseInventory(r io.Reader) (Inventory, error) {
	var inv Inventory

	scanner := bufio.NewScanner(r)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Split(line, ":")
		if len(parts) < 6 {
			return nil, fmt.Errorf("inventory line %d: %d fields, want at least 6", lineNo, len(parts))
		}

		num, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("inventory line %d: record number %q: %w", lineNo, parts[0], err)
		}
		offset, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("inventory line %d: offset %q: %w", lineNo, parts[1], err)
		}

		inv = append(inv, InventoryRecord{
			Number:    num,
			Offset:    offset,
			RefTime:   strings.TrimPrefix(parts[2], "d="),
			Parameter: parts[3],
			Level:     parts[4],
			Range:     parts[5],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read inventory: %w", err)
	}
	if len(inv) == 0 {
		return nil, errors.New("empty inventory")
	}
	return inv, nil
}

// FindRange returns the byte range [start, end] of the record matching the
// given parameter and level. end is -1 when the record is the last in the
// file and extends to EOF (callers issue an open-ended range request).
func (inv Inventory) FindRange(parameter, level string) (start, end int64, err error) {
	for i, rec := range inv {
		if rec.Parameter != parameter || rec.Level != level {
			continue
		}
		start = rec.Offset
		end = int64(-1)
		// Records share offsets when submessages are packed together, so
		// the end is the next record with a strictly larger offset.
		for _, next := range inv[i+1:] {
			if next.Offset > rec.Offset {
				end = next.Offset - 1
				break
			}
		}
		return start, end, nil
	}
	return 0, 0, fmt.Errorf("%s at %q: %w", parameter, level, ErrRecordNotFound)
}
