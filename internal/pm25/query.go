package pm25

import (
	"sort"
)

// All returns every record in table order.
func All(t Table) []Record {
	out := make([]Record, len(t))
	copy(out, t)
	return out
}

// ByID returns the record with the given id.
func ByID(t Table, id int) (Record, bool) {
	i := t.indexOf(id)
	if i < 0 {
		return Record{}, false
	}
	return t[i], true
}

// Statistics computes count, mean, min and max of the measurements.
func Statistics(t Table) (Stats, error) {
	if len(t) == 0 {
		return Stats{}, ErrEmptyTable
	}

	st := Stats{Count: len(t), Min: t[0].Measurement, Max: t[0].Measurement}
	var sum float64
	for _, r := range t {
		sum += r.Measurement
		if r.Measurement < st.Min {
			st.Min = r.Measurement
		}
		if r.Measurement > st.Max {
			st.Max = r.Measurement
		}
	}
	st.Average = sum / float64(len(t))
	return st, nil
}

// Filter returns the records whose coordinates equal the given ones.
// A nil argument does not constrain its coordinate.
func Filter(t Table, lat, lon *float64) []Record {
	out := []Record{}
	for _, r := range t {
		if lat != nil && r.Latitude != *lat {
			continue
		}
		if lon != nil && r.Longitude != *lon {
			continue
		}
		out = append(out, r)
	}
	return out
}

// InRegion returns the records inside the bounding box. An inverted box
// matches nothing.
func InRegion(t Table, box Box) []Record {
	out := []Record{}
	for _, r := range t {
		if box.Contains(r.Latitude, r.Longitude) {
			out = append(out, r)
		}
	}
	return out
}

// Normalize rescales the measurements linearly to [0, 1].
func Normalize(t Table) ([]NormalizedRecord, error) {
	out := make([]NormalizedRecord, 0, len(t))
	if len(t) == 0 {
		return out, nil
	}

	lo, hi := t[0].Measurement, t[0].Measurement
	for _, r := range t[1:] {
		lo = min(lo, r.Measurement)
		hi = max(hi, r.Measurement)
	}
	if lo == hi {
		return nil, ErrDegenerateRange
	}

	span := hi - lo
	for _, r := range t {
		out = append(out, NormalizedRecord{
			ID:         r.ID,
			Latitude:   r.Latitude,
			Longitude:  r.Longitude,
			Normalized: (r.Measurement - lo) / span,
		})
	}
	return out, nil
}

// TopN returns the n records with the largest measurements in descending
// order. Ties keep table order.
func TopN(t Table, n int) []Record {
	if n <= 0 {
		return []Record{}
	}
	sorted := All(t)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Measurement > sorted[j].Measurement
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func (t Table) indexOf(id int) int {
	for i, r := range t {
		if r.ID == id {
			return i
		}
	}
	return -1
}
