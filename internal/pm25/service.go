package pm25

import (
	"log/slog"

	"github.com/i474232898/pm25-data-api/internal/metrics"
)

// Store is the contract the snapshot store must satisfy.
type Store interface {
	// Snapshot returns the currently published table.
	Snapshot() Table
	// Mutate runs fn on the current table and publishes its result. Calls
	// are serialized; when fn returns an error nothing is published.
	Mutate(fn func(Table) (Table, error)) error
}

// Service exposes the query and mutation operations over a Store.
type Service struct {
	store Store
}

// NewService creates a new Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Len returns the number of records currently published.
func (s *Service) Len() int {
	return len(s.store.Snapshot())
}

// All returns a copy of every record in the current snapshot.
func (s *Service) All() []Record {
	return All(s.store.Snapshot())
}

// Get returns the record with the given id or ErrNotFound.
func (s *Service) Get(id int) (Record, error) {
	r, ok := ByID(s.store.Snapshot(), id)
	if !ok {
		return Record{}, ErrNotFound
	}
	return r, nil
}

// Stats delegates to Statistics on the current snapshot.
func (s *Service) Stats() (Stats, error) {
	return Statistics(s.store.Snapshot())
}

// Filter returns the records matching the given coordinates exactly. A nil
// coordinate is not constrained.
func (s *Service) Filter(lat, lon *float64) []Record {
	return Filter(s.store.Snapshot(), lat, lon)
}

// InRegion returns the records inside box, bounds included.
func (s *Service) InRegion(box Box) []Record {
	return InRegion(s.store.Snapshot(), box)
}

// Normalized delegates to Normalize on the current snapshot.
func (s *Service) Normalized() ([]NormalizedRecord, error) {
	return Normalize(s.store.Snapshot())
}

// TopN returns the n records with the highest measurement.
func (s *Service) TopN(n int) []Record {
	return TopN(s.store.Snapshot(), n)
}

// Add stores a new record and returns its id.
func (s *Service) Add(nr NewRecord) (int, error) {
	var id int
	err := s.store.Mutate(func(t Table) (Table, error) {
		var out Table
		out, id = Add(t, nr)
		return out, nil
	})
	if err != nil {
		return 0, err
	}
	metrics.RecordMutation("add")
	slog.Info("added data entry", "id", id)
	return id, nil
}

// Update overwrites the set fields of the record with the given id. An
// update without fields only checks that the record exists.
func (s *Service) Update(id int, f UpdateFields) error {
	if f.Empty() {
		slog.Debug("update with no fields set", "id", id)
		_, err := s.Get(id)
		return err
	}

	err := s.store.Mutate(func(t Table) (Table, error) {
		out, ok := Update(t, id, f)
		if !ok {
			return nil, ErrNotFound
		}
		return out, nil
	})
	if err != nil {
		return err
	}
	metrics.RecordMutation("update")
	slog.Info("updated data entry", "id", id)
	return nil
}

// Delete removes the record with the given id.
func (s *Service) Delete(id int) error {
	err := s.store.Mutate(func(t Table) (Table, error) {
		out, ok := Delete(t, id)
		if !ok {
			return nil, ErrNotFound
		}
		return out, nil
	})
	if err != nil {
		return err
	}
	metrics.RecordMutation("delete")
	slog.Info("deleted data entry", "id", id)
	return nil
}
