// Package flood models a time-varying flood hazard over a geo-referenced
// depth raster. No GIS/raster library (GDAL binding, GeoTIFF reader) is
// available anywhere in the retrieved corpus, so the raster format here is
// a minimal stand-in: a row-major grid of centimeter depths plus the
// affine transform needed to project lon/lat into grid cells, serialized
// as JSON rather than a binary raster container.
package flood

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// AffineTransform maps (lon, lat) to fractional (col, row) the way a
// GeoTIFF's geotransform would: col = (lon-originLon)/pixelWidth,
// row = (lat-originLat)/pixelHeight. PixelHeight is conventionally negative
// for north-up rasters.
type AffineTransform struct {
	OriginLon   float64 `json:"origin_lon"`
	OriginLat   float64 `json:"origin_lat"`
	PixelWidth  float64 `json:"pixel_width"`
	PixelHeight float64 `json:"pixel_height"`
}

// Raster is a single-band depth grid in centimeters, row-major from the
// north-west corner, with an optional nodata sentinel.
type Raster struct {
	Transform AffineTransform `json:"transform"`
	Rows      int             `json:"rows"`
	Cols      int             `json:"cols"`
	NoData    *float64        `json:"nodata,omitempty"`
	DepthCM   []float64       `json:"depth_cm"` // len == Rows*Cols, row-major
}

// LoadRaster reads a Raster from a JSON file, clamping negative depths to
// zero. Errors are returned for the caller to decide whether to silently
// disable the map (per the flood module's load-failure contract).
func LoadRaster(path string) (*Raster, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read flood raster: %w", err)
	}
	var r Raster
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("decode flood raster: %w", err)
	}
	if len(r.DepthCM) != r.Rows*r.Cols {
		return nil, fmt.Errorf("flood raster: depth grid has %d cells, want %d (%dx%d)",
			len(r.DepthCM), r.Rows*r.Cols, r.Rows, r.Cols)
	}
	for i, v := range r.DepthCM {
		if v < 0 {
			r.DepthCM[i] = 0
		}
	}
	return &r, nil
}

// baseDepthCM returns the base (time-zero) depth at (lon, lat) in
// centimeters, or 0 if out of bounds, nodata, or NaN.
func (r *Raster) baseDepthCM(lon, lat float64) float64 {
	t := r.Transform
	if t.PixelWidth == 0 || t.PixelHeight == 0 {
		return 0
	}
	col := int(math.Floor((lon - t.OriginLon) / t.PixelWidth))
	row := int(math.Floor((lat - t.OriginLat) / t.PixelHeight))
	if row < 0 || row >= r.Rows || col < 0 || col >= r.Cols {
		return 0
	}
	v := r.DepthCM[row*r.Cols+col]
	if math.IsNaN(v) {
		return 0
	}
	if r.NoData != nil && v == *r.NoData {
		return 0
	}
	if v < 0 {
		return 0
	}
	return v
}
