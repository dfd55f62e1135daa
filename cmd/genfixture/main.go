// Command genfixture writes synthetic GRIB2 files and their ".idx"
// inventories for offline testing. The generated files decode with the
// service's own GRIB reader, so a local HTTP server pointed at the output
// directory can stand in for NOMADS.
//
// Usage:
//
//	go run ./cmd/genfixture -out ./testdata/fixtures
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/model-imagery-service/internal/domain"
	"github.com/couchcryptid/model-imagery-service/internal/grib"
)

// fixtureCycle is fixed so regenerated fixtures are byte-identical.
var fixtureCycle = time.Date(2024, time.April, 26, 12, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out", "", "output directory for fixture files")
	flag.Parse()

	if *outDir == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}

	for _, m := range domain.Models() {
		spec := fixtureSpec(m)
		data, err := grib.EncodeLatLonSimple(spec)
		if err != nil {
			return fmt.Errorf("%s: %w", m.Slug, err)
		}

		base := filepath.Join(*outDir, m.Slug+".grib2")
		if err := os.WriteFile(base, data, 0o644); err != nil {
			return err
		}
		if err := os.WriteFile(base+".idx", []byte(grib.InventoryFor(spec)), 0o644); err != nil {
			return err
		}
		log.Printf("%s: %d bytes, %dx%d grid", m.Slug, len(data), spec.Ni, spec.Nj)
	}
	return nil
}

// fixtureSpec builds a 1-degree lat/lon grid covering the Northeast sector
// with a smooth temperature gradient. Each model gets a slightly different
// field so rendered fixtures are distinguishable.
func fixtureSpec(m domain.Model) grib.EncodeSpec {
	const ni, nj = 20, 14
	values := make([]float64, ni*nj)
	offset := float64(len(m.Slug)) // per-model variation

	for j := 0; j < nj; j++ {
		for i := 0; i < ni; i++ {
			// Warmer to the south, with a gentle east-west wave.
			lat := 49 - float64(j)
			values[j*ni+i] = 270 + (49-lat)*1.5 + 3*math.Sin(float64(i)/3) + offset
		}
	}

	return grib.EncodeSpec{
		RefTime:  fixtureCycle,
		Ni:       ni,
		Nj:       nj,
		Lat1:     49,
		Lon1:     -84,
		Di:       1,
		Dj:       1,
		DecScale: 1,
		Values:   values,
	}
}
