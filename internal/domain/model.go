package domain

import (
	"fmt"
	"time"
)

// DefaultLookbackHours is how far back discovery searches for a ready run.
// Models are updated at different times; 12 hours covers the slowest cycle
// plus upload lag.
const DefaultLookbackHours = 12

// Model describes one NWP model: where its output lives and how its runs
// are laid out.
type Model struct {
	Label       string // display label in the index table, e.g. "NAM 3km"
	Slug        string // file-name slug, e.g. "nam3k"
	Bucket      string // NOAA open data S3 bucket
	CycleStride int    // hours between initializations

	keyFn    func(cycle time.Time, fxx int) string
	nomadsFn func(cycle time.Time, fxx int) string
}

// models lists the five published models in index-table order.
var models = []Model{
	{
		Label:       "HRRR",
		Slug:        "hrrr",
		Bucket:      "noaa-hrrr-bdp-pds",
		CycleStride: 1,
		keyFn: func(c time.Time, fxx int) string {
			return fmt.Sprintf("hrrr.%s/conus/hrrr.t%02dz.wrfsfcf%02d.grib2", c.Format("20060102"), c.Hour(), fxx)
		},
		nomadsFn: func(c time.Time, fxx int) string {
			return fmt.Sprintf("/pub/data/nccf/com/hrrr/prod/hrrr.%s/conus/hrrr.t%02dz.wrfsfcf%02d.grib2", c.Format("20060102"), c.Hour(), fxx)
		},
	},
	{
		Label:       "RRFS",
		Slug:        "rrfs",
		Bucket:      "noaa-rrfs-pds",
		CycleStride: 1,
		keyFn: func(c time.Time, fxx int) string {
			return fmt.Sprintf("rrfs_a/rrfs_a.%s/%02d/control/rrfs.t%02dz.prslev.f%03d.conus_3km.grib2", c.Format("20060102"), c.Hour(), c.Hour(), fxx)
		},
		nomadsFn: func(c time.Time, fxx int) string {
			return fmt.Sprintf("/pub/data/nccf/com/rrfs/prod/rrfs.%s/%02d/rrfs.t%02dz.prslev.f%03d.conus_3km.grib2", c.Format("20060102"), c.Hour(), c.Hour(), fxx)
		},
	},
	{
		Label:       "NAM",
		Slug:        "nam",
		Bucket:      "noaa-nam-pds",
		CycleStride: 6,
		keyFn: func(c time.Time, fxx int) string {
			return fmt.Sprintf("nam.%s/nam.t%02dz.awphys%02d.tm00.grib2", c.Format("20060102"), c.Hour(), fxx)
		},
		nomadsFn: func(c time.Time, fxx int) string {
			return fmt.Sprintf("/pub/data/nccf/com/nam/prod/nam.%s/nam.t%02dz.awphys%02d.tm00.grib2", c.Format("20060102"), c.Hour(), fxx)
		},
	},
	{
		Label:       "NAM 3km",
		Slug:        "nam3k",
		Bucket:      "noaa-nam-pds",
		CycleStride: 6,
		keyFn: func(c time.Time, fxx int) string {
			return fmt.Sprintf("nam.%s/nam.t%02dz.conusnest.hiresf%02d.tm00.grib2", c.Format("20060102"), c.Hour(), fxx)
		},
		nomadsFn: func(c time.Time, fxx int) string {
			return fmt.Sprintf("/pub/data/nccf/com/nam/prod/nam.%s/nam.t%02dz.conusnest.hiresf%02d.tm00.grib2", c.Format("20060102"), c.Hour(), fxx)
		},
	},
	{
		Label:       "GFS",
		Slug:        "gfs",
		Bucket:      "noaa-gfs-bdp-pds",
		CycleStride: 6,
		keyFn: func(c time.Time, fxx int) string {
			return fmt.Sprintf("gfs.%s/%02d/atmos/gfs.t%02dz.pgrb2.0p25.f%03d", c.Format("20060102"), c.Hour(), c.Hour(), fxx)
		},
		nomadsFn: func(c time.Time, fxx int) string {
			return fmt.Sprintf("/pub/data/nccf/com/gfs/prod/gfs.%s/%02d/atmos/gfs.t%02dz.pgrb2.0p25.f%03d", c.Format("20060102"), c.Hour(), c.Hour(), fxx)
		},
	},
}

// Models returns the published model catalog in index-table order.
func Models() []Model {
	out := make([]Model, len(models))
	copy(out, models)
	return out
}

// ModelBySlug looks up a catalog model by its file-name slug.
func ModelBySlug(slug string) (Model, bool) {
	for _, m := range models {
		if m.Slug == slug {
			return m, true
		}
	}
	return Model{}, false
}

// DataKey returns the S3 object key of the model's GRIB2 file for the given
// cycle and forecast hour.
func (m Model) DataKey(cycle time.Time, fxx int) string {
	return m.keyFn(cycle.UTC(), fxx)
}

// IndexKey returns the S3 object key of the sidecar ".idx" inventory.
func (m Model) IndexKey(cycle time.Time, fxx int) string {
	return m.DataKey(cycle, fxx) + ".idx"
}

// NOMADSPath returns the HTTPS path of the same GRIB2 file on NOMADS.
func (m Model) NOMADSPath(cycle time.Time, fxx int) string {
	return m.nomadsFn(cycle.UTC(), fxx)
}

// NOMADSIndexPath returns the HTTPS path of the sidecar inventory on NOMADS.
func (m Model) NOMADSIndexPath(cycle time.Time, fxx int) string {
	return m.NOMADSPath(cycle, fxx) + ".idx"
}

// ImagePath returns the relative path of the model's published image,
// e.g. "images/hrrr_temp.png".
func (m Model) ImagePath() string {
	return "images/" + m.Slug + "_temp.png"
}

// CandidateCycles enumerates initialization times to probe, newest first,
// starting from the most recent cycle boundary at or before now and walking
// back lookback hours. Only hours on the model's cycle stride are included.
func (m Model) CandidateCycles(lookbackHours int) []time.Time {
	now := clock.Now().UTC().Truncate(time.Hour)

	var out []time.Time
	for i := 0; i <= lookbackHours; i++ {
		t := now.Add(-time.Duration(i) * time.Hour)
		if t.Hour()%m.CycleStride == 0 {
			out = append(out, t)
		}
	}
	return out
}
