package pm25

import (
	"encoding/json"
	"testing"
)

func TestAddToEmptyTable(t *testing.T) {
	out, id := Add(Table{}, NewRecord{Latitude: 10, Longitude: 20, Measurement: 15})
	if id != 0 {
		t.Fatalf("expected id 0, got %d", id)
	}
	if len(out) != 1 || out[0].Measurement != 15 {
		t.Fatalf("unexpected table %+v", out)
	}
}

func TestAdd(t *testing.T) {
	tbl := Table{{ID: 0}, {ID: 5, Measurement: 1}, {ID: 3}}
	out, id := Add(tbl, NewRecord{Latitude: 1.5, Longitude: 2.5, Measurement: 3.5})
	if id != 6 {
		t.Fatalf("expected id 6, got %d", id)
	}
	if len(out) != len(tbl)+1 {
		t.Fatalf("expected %d records, got %d", len(tbl)+1, len(out))
	}
	for i := range tbl {
		if out[i] != tbl[i] {
			t.Fatalf("record %d changed: %+v", i, out[i])
		}
	}
	got, ok := ByID(out, id)
	if !ok {
		t.Fatal("added record not found")
	}
	if want := (Record{ID: 6, Latitude: 1.5, Longitude: 2.5, Measurement: 3.5}); got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	if len(tbl) != 3 {
		t.Fatal("Add must not modify its input")
	}
}

func TestAddAfterDeleteUsesMaxPlusOne(t *testing.T) {
	tbl, _ := Add(sampleTable(), NewRecord{})

	// A gap below the max is not filled.
	gapped, _ := Delete(tbl, 1)
	if _, id := Add(gapped, NewRecord{}); id != 4 {
		t.Fatalf("expected id 4, got %d", id)
	}

	// Removing the max lowers it, so its id is handed out again.
	trimmed, _ := Delete(tbl, 3)
	if _, id := Add(trimmed, NewRecord{}); id != 3 {
		t.Fatalf("expected id 3, got %d", id)
	}
}

func TestUpdatePartial(t *testing.T) {
	tbl := Table{{ID: 0, Latitude: 10, Longitude: 20, Measurement: 15}}

	out, ok := Update(tbl, 0, UpdateFields{Measurement: Some(18)})
	if !ok {
		t.Fatal("expected update to succeed")
	}
	if want := (Record{ID: 0, Latitude: 10, Longitude: 20, Measurement: 18}); out[0] != want {
		t.Fatalf("expected %+v, got %+v", want, out[0])
	}
	if tbl[0].Measurement != 15 {
		t.Fatal("Update must not modify its input")
	}

	out, _ = Update(out, 0, UpdateFields{Latitude: Some(12), Longitude: Some(22)})
	if want := (Record{ID: 0, Latitude: 12, Longitude: 22, Measurement: 18}); out[0] != want {
		t.Fatalf("expected %+v, got %+v", want, out[0])
	}
}

func TestUpdateMissing(t *testing.T) {
	tbl := sampleTable()
	out, ok := Update(tbl, 42, UpdateFields{Measurement: Some(1)})
	if ok {
		t.Fatal("expected not found")
	}
	if len(out) != len(tbl) || out[0] != tbl[0] {
		t.Fatal("table must be returned unchanged")
	}
}

func TestDelete(t *testing.T) {
	tbl := sampleTable()
	out, ok := Delete(tbl, 1)
	if !ok {
		t.Fatal("expected delete to succeed")
	}
	if got := ids(out); !equalInts(got, []int{0, 2}) {
		t.Fatalf("expected ids [0 2], got %v", got)
	}
	if _, ok := ByID(out, 1); ok {
		t.Fatal("deleted record still present")
	}
	if len(tbl) != 3 {
		t.Fatal("Delete must not modify its input")
	}

	if _, ok := Delete(out, 1); ok {
		t.Fatal("expected second delete to report not found")
	}
}

func TestUpdateFieldsJSON(t *testing.T) {
	var f UpdateFields
	if err := json.Unmarshal([]byte(`{"PM2.5": 35, "Unknown": "x"}`), &f); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.Measurement.Set || f.Measurement.Value != 35 {
		t.Fatalf("expected PM2.5 to be set, got %+v", f.Measurement)
	}
	if f.Latitude.Set || f.Longitude.Set {
		t.Fatalf("absent fields must stay unset: %+v", f)
	}

	if err := json.Unmarshal([]byte(`{"Latitude": null}`), &f); err == nil {
		t.Fatal("expected null to be rejected")
	}
	if err := json.Unmarshal([]byte(`{"Latitude": "ten"}`), &f); err == nil {
		t.Fatal("expected string to be rejected")
	}
	if !(UpdateFields{}).Empty() {
		t.Fatal("zero UpdateFields must be empty")
	}
}
