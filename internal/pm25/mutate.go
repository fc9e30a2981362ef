package pm25

// NextID returns the id the next added record receives.
func NextID(t Table) int {
	next := 0
	for _, r := range t {
		if r.ID >= next {
			next = r.ID + 1
		}
	}
	return next
}

// Add returns a copy of t with the record appended, and the id it was given.
func Add(t Table, nr NewRecord) (Table, int) {
	id := NextID(t)
	out := make(Table, len(t), len(t)+1)
	copy(out, t)
	out = append(out, Record{
		ID:          id,
		Latitude:    nr.Latitude,
		Longitude:   nr.Longitude,
		Measurement: nr.Measurement,
	})
	return out, id
}

// Update returns a copy of t where the set fields of the record with the
// given id are overwritten. When id is unknown, t is returned unchanged.
func Update(t Table, id int, f UpdateFields) (Table, bool) {
	i := t.indexOf(id)
	if i < 0 {
		return t, false
	}

	out := make(Table, len(t))
	copy(out, t)
	r := &out[i]
	if f.Latitude.Set {
		r.Latitude = f.Latitude.Value
	}
	if f.Longitude.Set {
		r.Longitude = f.Longitude.Value
	}
	if f.Measurement.Set {
		r.Measurement = f.Measurement.Value
	}
	return out, true
}

// Delete returns a copy of t without the record with the given id.
// Remaining ids are kept as they are.
func Delete(t Table, id int) (Table, bool) {
	i := t.indexOf(id)
	if i < 0 {
		return t, false
	}

	out := make(Table, 0, len(t)-1)
	out = append(out, t[:i]...)
	out = append(out, t[i+1:]...)
	return out, true
}
