package pm25

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrNotFound is returned when no record exists for a given id.
	ErrNotFound = errors.New("data entry not found")

	// ErrEmptyTable is returned by aggregates that are undefined without rows.
	ErrEmptyTable = errors.New("no data available")

	// ErrDegenerateRange is returned by Normalize when min and max are equal.
	ErrDegenerateRange = errors.New("cannot normalize PM2.5 levels: min and max values are equal")
)

// Record is a single PM2.5 measurement at a grid point.
type Record struct {
	ID          int     `json:"id"`
	Latitude    float64 `json:"Latitude"`
	Longitude   float64 `json:"Longitude"`
	Measurement float64 `json:"PM2.5"`
}

// Table is an ordered set of records with unique ids.
// Tables handed out by this package are never modified in place.
type Table []Record

// NewRecord is a record before the store assigns it an id.
type NewRecord struct {
	Latitude    float64
	Longitude   float64
	Measurement float64
}

// NormalizedRecord is the min-max normalized view of a record.
type NormalizedRecord struct {
	ID         int     `json:"id"`
	Latitude   float64 `json:"Latitude"`
	Longitude  float64 `json:"Longitude"`
	Normalized float64 `json:"PM2.5_normalized"`
}

// Stats holds aggregate values over the Measurement column.
type Stats struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// Box is an inclusive latitude/longitude bounding box.
type Box struct {
	LatMin, LatMax float64
	LonMin, LonMax float64
}

// Contains reports whether the point lies inside the box, edges included.
func (b Box) Contains(lat, lon float64) bool {
	return lat >= b.LatMin && lat <= b.LatMax && lon >= b.LonMin && lon <= b.LonMax
}

// Optional is a float field of a partial update. Set is true only when the
// field was present in the request.
type Optional struct {
	Value float64
	Set   bool
}

// Some returns a set Optional holding v.
func Some(v float64) Optional {
	return Optional{Value: v, Set: true}
}

// UnmarshalJSON marks the field as set. An explicit null is rejected so a
// field is either absent or carries a number.
func (o *Optional) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return errors.New("value must be a number, not null")
	}
	v, err := strconv.ParseFloat(string(bytes.TrimSpace(b)), 64)
	if err != nil {
		return fmt.Errorf("value must be a number: %w", err)
	}
	o.Value = v
	o.Set = true
	return nil
}

// UpdateFields lists the fields a partial update overwrites.
type UpdateFields struct {
	Latitude    Optional `json:"Latitude"`
	Longitude   Optional `json:"Longitude"`
	Measurement Optional `json:"PM2.5"`
}

// Empty reports whether no field is set.
func (u UpdateFields) Empty() bool {
	return !u.Latitude.Set && !u.Longitude.Set && !u.Measurement.Set
}
