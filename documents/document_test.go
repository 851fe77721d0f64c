package documents

import (
	"testing"
)

func TestCategorise(t *testing.T) {
	cases := []struct {
		discipline, title, want string
	}{
		{"architectural", "Site overview", Floorplans},
		{"other", "Ground Floor Layout", Floorplans},
		{"safety", "Smoke alarm guide", FireSafety},
		{"other", "Car Park Rules", Parking},
		{"handover", "Welcome pack", Handover},
		{"other", "Snag list", Snagging},
		{"other", "HomeBond Warranty", Warranties},
		{"other", "Energy certificate", Warranties},
		{"other", "Technical data", Specifications},
		{"other", "Bin collection", General},
		// Title rules are checked before the handover discipline.
		{"handover", "Fire blanket", FireSafety},
	}

	for _, c := range cases {
		if got := Categorise(c.discipline, c.title); got != c.want {
			t.Errorf("Categorise(%q, %q) = %q, want %q", c.discipline, c.title, got, c.want)
		}
	}
}

func TestVisibleTo(t *testing.T) {
	cases := []struct {
		name      string
		rec       Record
		houseType string
		want      bool
	}{
		{"global flag", Record{Title: "BD02 plan", Metadata: map[string]any{"is_global": true}}, "BD01", true},
		{"global string flag", Record{Title: "BD02 plan", Metadata: map[string]any{"is_global": "true"}}, "BD01", true},
		{"unknown house type", Record{Title: "BD02 plan"}, "", true},
		{"house types match", Record{Metadata: map[string]any{"house_types": []any{"bd01", "BD03"}}}, "BD01", true},
		{"house types miss", Record{Metadata: map[string]any{"houseTypes": []any{"BD03"}}}, "BD01", false},
		{"unit type", Record{Metadata: map[string]any{"unit_type": "bd02"}}, "BD01", false},
		{"house type code", Record{HouseTypeCode: "BD01"}, "bd01", true},
		{"own code in title", Record{Title: "House BD01 floor plan"}, "BD01", true},
		{"other code in title", Record{Title: "House BD02 floor plan"}, "BD01", false},
		{"no code in title", Record{Title: "Bin collection"}, "BD01", true},
	}

	for _, c := range cases {
		if got := VisibleTo(c.rec, c.houseType); got != c.want {
			t.Errorf("%s: VisibleTo = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestIsHouseSpecific(t *testing.T) {
	if IsHouseSpecific(Record{HouseTypeCode: "BD01"}, "") {
		t.Errorf("nothing is house specific without a house type")
	}
	if !IsHouseSpecific(Record{Metadata: map[string]any{"tags": []any{"bd01", "upstairs"}}}, "BD01") {
		t.Errorf("expected tag match")
	}
	if !IsHouseSpecific(Record{Title: "BD01 elevations"}, "BD01") {
		t.Errorf("expected title match")
	}
	if IsHouseSpecific(Record{Title: "Site plan", Metadata: map[string]any{"is_global": true}}, "BD01") {
		t.Errorf("shared document marked house specific")
	}
}

func TestForUnit(t *testing.T) {
	rank := 1
	records := []Record{
		{ID: "1", Title: "Site plan", MimeType: "application/pdf"},
		{ID: "2", Title: "BD02 floor plan"},
		{ID: "3", Title: "Old warranty", IsSuperseded: true},
		{ID: "4", Title: "Warranty", IsImportant: true, ImportantRank: &rank},
		{ID: "5", Title: "Custom", Metadata: map[string]any{"category": "Parking"}},
	}

	docs := ForUnit(records, "BD01")
	if len(docs) != 3 {
		t.Fatalf("expected 3 documents, got %d: %+v", len(docs), docs)
	}
	if docs[0].ID != "1" || docs[1].ID != "4" || docs[2].ID != "5" {
		t.Fatalf("unexpected order %s %s %s", docs[0].ID, docs[1].ID, docs[2].ID)
	}
	if docs[0].Category != Floorplans || docs[0].FileType != "application/pdf" {
		t.Errorf("unexpected formatting %+v", docs[0])
	}
	if !docs[1].MustRead {
		t.Errorf("important documents are must-read")
	}
	if docs[2].Category != Parking {
		t.Errorf("stored category should win, got %q", docs[2].Category)
	}

	if _, ok := Find(docs, "4"); !ok {
		t.Errorf("Find missed document 4")
	}
	if _, ok := Find(docs, "2"); ok {
		t.Errorf("Find returned a hidden document")
	}
}

func TestSearch(t *testing.T) {
	docs := []Document{
		{ID: "1", Title: "Ground floor plan"},
		{ID: "2", Title: "Boiler manual"},
		{ID: "3", Title: "Warranty certificate"},
	}

	got := Search(docs, "boil")
	if len(got) != 1 || got[0].ID != "2" {
		t.Fatalf("unexpected search result %+v", got)
	}
	if got := Search(docs, "  "); len(got) != len(docs) {
		t.Fatalf("empty query should return everything")
	}
	if got := Search(docs, "zzz"); len(got) != 0 {
		t.Fatalf("expected no matches, got %+v", got)
	}
}

func TestMustReadOrder(t *testing.T) {
	one, two := 1, 2
	docs := []Document{
		{ID: "a", MustRead: true},
		{ID: "b", MustRead: true, ImportantRank: &two},
		{ID: "c"},
		{ID: "d", MustRead: true, ImportantRank: &one},
	}

	got := MustRead(docs)
	if len(got) != 3 || got[0].ID != "d" || got[1].ID != "b" || got[2].ID != "a" {
		t.Fatalf("unexpected must-read order %+v", got)
	}

	groups := ByCategory([]Document{{Category: General}, {Category: Parking}, {Category: General}})
	if len(groups[General]) != 2 || len(groups[Parking]) != 1 {
		t.Fatalf("unexpected groups %+v", groups)
	}
}
