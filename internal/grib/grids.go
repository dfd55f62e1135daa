package grib

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Grid definition templates supported by parseGrid.
const (
	tmplLatLon  = 0
	tmplLambert = 30
)

const (
	microDeg = 1e-6
	// sphericalRadius is the NCEP spherical earth radius in meters, used
	// when the shape-of-earth octet selects the standard sphere.
	sphericalRadius = 6371229.0
)

func parseGrid(sec3 []byte) (Grid, error) {
	if len(sec3) < 15 {
		return nil, fmt.Errorf("grid section too short: %d bytes", len(sec3))
	}
	tmpl := int(binary.BigEndian.Uint16(sec3[12:14]))

	switch tmpl {
	case tmplLatLon:
		return parseLatLonGrid(sec3)
	case tmplLambert:
		return parseLambertGrid(sec3)
	default:
		return nil, fmt.Errorf("unsupported grid definition template 3.%d", tmpl)
	}
}

// LatLonGrid is a regular latitude/longitude grid (template 3.0).
type LatLonGrid struct {
	Ni, Nj     int
	Lat1, Lon1 float64 // first grid point, degrees; Lon1 in [0, 360)
	// Signed per-index increments following the scanning order: LonStep is
	// negative when i runs east-to-west, LatStep negative when j runs
	// north-to-south (the NCEP default).
	LatStep, LonStep float64
}

func parseLatLonGrid(sec3 []byte) (*LatLonGrid, error) {
	if len(sec3) < 72 {
		return nil, fmt.Errorf("lat/lon grid template too short: %d bytes", len(sec3))
	}

	g := &LatLonGrid{
		Ni:   int(binary.BigEndian.Uint32(sec3[30:34])),
		Nj:   int(binary.BigEndian.Uint32(sec3[34:38])),
		Lat1: float64(signedSM32(sec3[46:50])) * microDeg,
		Lon1: float64(signedSM32(sec3[50:54])) * microDeg,
	}
	if g.Ni <= 0 || g.Nj <= 0 {
		return nil, fmt.Errorf("invalid grid dimensions %dx%d", g.Ni, g.Nj)
	}

	di := float64(binary.BigEndian.Uint32(sec3[63:67])) * microDeg
	dj := float64(binary.BigEndian.Uint32(sec3[67:71])) * microDeg
	scan := sec3[71]

	g.LonStep = di
	if scan&0x80 != 0 { // i scans negatively (east to west)
		g.LonStep = -di
	}
	g.LatStep = -dj // default: j scans north to south
	if scan&0x40 != 0 {
		g.LatStep = dj
	}
	return g, nil
}

func (g *LatLonGrid) Dims() (int, int) { return g.Ni, g.Nj }

func (g *LatLonGrid) Locate(lat, lon float64) (float64, float64, bool) {
	dlon := lon - g.Lon1
	if g.LonStep > 0 {
		dlon = wrap360(dlon)
	} else {
		dlon = -wrap360(-dlon)
	}
	x := dlon / g.LonStep
	y := (lat - g.Lat1) / g.LatStep

	if x < 0 || y < 0 || x > float64(g.Ni-1) || y > float64(g.Nj-1) {
		return 0, 0, false
	}
	return x, y, true
}

// wrap360 maps a longitude difference into [0, 360).
func wrap360(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// LambertGrid is a Lambert conformal conic grid (template 3.30) on a
// spherical earth, the projection used by HRRR, RRFS and the NAM nests.
type LambertGrid struct {
	Nx, Ny int

	// Projection constants, derived once at construction.
	n, f, rho0 float64
	lov        float64 // orientation longitude, radians
	radius     float64

	x1, y1 float64 // projected coordinates of the first grid point, meters
	dx, dy float64 // signed grid steps following the scanning order, meters
}

func parseLambertGrid(sec3 []byte) (*LambertGrid, error) {
	if len(sec3) < 73 {
		return nil, fmt.Errorf("lambert grid template too short: %d bytes", len(sec3))
	}

	nx := int(binary.BigEndian.Uint32(sec3[30:34]))
	ny := int(binary.BigEndian.Uint32(sec3[34:38]))
	if nx <= 0 || ny <= 0 {
		return nil, fmt.Errorf("invalid grid dimensions %dx%d", nx, ny)
	}

	la1 := float64(signedSM32(sec3[38:42])) * microDeg
	lo1 := float64(signedSM32(sec3[42:46])) * microDeg
	lad := float64(signedSM32(sec3[47:51])) * microDeg
	lov := float64(signedSM32(sec3[51:55])) * microDeg
	dx := float64(binary.BigEndian.Uint32(sec3[55:59])) / 1000 // mm -> m
	dy := float64(binary.BigEndian.Uint32(sec3[59:63])) / 1000
	scan := sec3[64]
	latin1 := float64(signedSM32(sec3[65:69])) * microDeg
	latin2 := float64(signedSM32(sec3[69:73])) * microDeg

	if scan&0x80 != 0 {
		dx = -dx
	}
	if scan&0x40 == 0 { // j scans north to south
		dy = -dy
	}

	return NewLambertGrid(nx, ny, la1, lo1, lad, lov, latin1, latin2, dx, dy), nil
}

// NewLambertGrid constructs a Lambert conformal grid from projection
// parameters in degrees and signed grid steps in meters.
func NewLambertGrid(nx, ny int, la1, lo1, lad, lov, latin1, latin2, dx, dy float64) *LambertGrid {
	rad := math.Pi / 180
	phi1 := latin1 * rad
	phi2 := latin2 * rad

	var n float64
	if math.Abs(phi1-phi2) < 1e-9 {
		n = math.Sin(phi1)
	} else {
		n = math.Log(math.Cos(phi1)/math.Cos(phi2)) /
			math.Log(math.Tan(math.Pi/4+phi2/2)/math.Tan(math.Pi/4+phi1/2))
	}
	f := math.Cos(phi1) * math.Pow(math.Tan(math.Pi/4+phi1/2), n) / n

	g := &LambertGrid{
		Nx:     nx,
		Ny:     ny,
		n:      n,
		f:      f,
		lov:    lov * rad,
		radius: sphericalRadius,
		dx:     dx,
		dy:     dy,
	}
	g.rho0 = g.rho(lad * rad)
	g.x1, g.y1 = g.project(la1, lo1)
	return g
}

// rho is the projected radial distance of a latitude (radians).
func (g *LambertGrid) rho(phi float64) float64 {
	return g.radius * g.f / math.Pow(math.Tan(math.Pi/4+phi/2), g.n)
}

// project converts degrees lat/lon to projected meters.
func (g *LambertGrid) project(lat, lon float64) (x, y float64) {
	rad := math.Pi / 180
	rho := g.rho(lat * rad)

	dlam := lon*rad - g.lov
	// wrap to (-pi, pi]
	for dlam > math.Pi {
		dlam -= 2 * math.Pi
	}
	for dlam <= -math.Pi {
		dlam += 2 * math.Pi
	}
	theta := g.n * dlam

	return rho * math.Sin(theta), g.rho0 - rho*math.Cos(theta)
}

func (g *LambertGrid) Dims() (int, int) { return g.Nx, g.Ny }

func (g *LambertGrid) Locate(lat, lon float64) (float64, float64, bool) {
	xx, yy := g.project(lat, lon)
	x := (xx - g.x1) / g.dx
	y := (yy - g.y1) / g.dy

	if x < 0 || y < 0 || x > float64(g.Nx-1) || y > float64(g.Ny-1) {
		return 0, 0, false
	}
	return x, y, true
}
