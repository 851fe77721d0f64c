// Package documents holds the purchaser document model and the rules shared
// by the portal API and its clients: which documents a unit sees, how they
// are grouped, and how they are searched.
package documents

import (
	"regexp"
	"strings"
	"time"
)

// Display categories
const (
	Floorplans     = "Floorplans"
	FireSafety     = "Fire Safety"
	Parking        = "Parking"
	Handover       = "Handover"
	Snagging       = "Snagging"
	Warranties     = "Warranties"
	Specifications = "Specifications"
	General        = "General"
)

// Categories lists the display categories in the order they are shown.
var Categories = []string{
	Floorplans,
	FireSafety,
	Parking,
	Handover,
	Snagging,
	Warranties,
	Specifications,
	General,
}

// Document is a document as served to a purchaser.
type Document struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	FileURL         string         `json:"file_url"`
	FileType        string         `json:"file_type"`
	CreatedAt       time.Time      `json:"created_at"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	Category        string         `json:"category"`
	IsHouseSpecific bool           `json:"is_house_specific"`
	IsImportant     bool           `json:"is_important"`
	ImportantRank   *int           `json:"important_rank"`
	MustRead        bool           `json:"must_read"`
}

// Record is a document row as stored for a development.
type Record struct {
	ID            string
	DevelopmentID string
	Title         string
	FileURL       string
	MimeType      string
	CreatedAt     time.Time
	Metadata      map[string]any
	HouseTypeCode string
	IsImportant   bool
	ImportantRank *int
	MustRead      bool
	IsSuperseded  bool
}

// ListResponse is the payload of the document listing endpoint.
type ListResponse struct {
	Documents []Document `json:"documents"`
}

// anyHouseType matches a house type code such as BD01 in a title.
var anyHouseType = regexp.MustCompile(`(?i)\b([A-Z]{2,4}\d{2})\b`)

func houseTypePattern(houseType string) *regexp.Regexp {
	if houseType == "" {
		return nil
	}
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(houseType) + `\b`)
}

/*
Categorise maps a document's discipline and title onto a display category.
Rules are checked in order, the first match wins.
*/
func Categorise(discipline, title string) string {
	d := strings.ToLower(discipline)
	t := strings.ToLower(title)

	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(t, w) {
				return true
			}
		}
		return false
	}

	switch {
	case d == "architectural" || has("floor", "plan", "elevation", "layout"):
		return Floorplans
	case has("fire", "smoke", "alarm"):
		return FireSafety
	case has("parking", "car park"):
		return Parking
	case d == "handover":
		return Handover
	case has("snag", "defect"):
		return Snagging
	case has("warranty", "guarantee", "cert"):
		return Warranties
	case has("spec", "technical"):
		return Specifications
	}
	return General
}

func metaString(m map[string]any, key string) (string, bool) {
	s, ok := m[key].(string)
	return s, ok && s != ""
}

func metaStrings(m map[string]any, keys ...string) []string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case []string:
			if len(v) > 0 {
				return v
			}
		case []any:
			out := []string{}
			for _, x := range v {
				if s, ok := x.(string); ok && s != "" {
					out = append(out, s)
				}
			}
			if len(v) > 0 {
				return out
			}
		}
	}
	return nil
}

func isGlobal(m map[string]any) bool {
	switch v := m["is_global"].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

func containsFold(list []string, s string) bool {
	for _, x := range list {
		if strings.EqualFold(x, s) {
			return true
		}
	}
	return false
}

/*
VisibleTo reports whether a unit of houseType may see r.

The most specific information wins: the global flag, then an explicit
house_types list, then unit_type, then the record's own house type code.
Without any of those, a title naming another house type hides the record.
A unit with no known house type sees everything.
*/
func VisibleTo(r Record, houseType string) bool {
	if isGlobal(r.Metadata) {
		return true
	}
	if houseType == "" {
		return true
	}

	if types := metaStrings(r.Metadata, "house_types", "houseTypes"); types != nil {
		return containsFold(types, houseType)
	}
	if ut, ok := metaString(r.Metadata, "unit_type"); ok {
		return strings.EqualFold(ut, houseType)
	}
	if r.HouseTypeCode != "" {
		return strings.EqualFold(r.HouseTypeCode, houseType)
	}

	if houseTypePattern(houseType).MatchString(r.Title) {
		return true
	}
	if m := anyHouseType.FindStringSubmatch(r.Title); m != nil {
		return strings.EqualFold(m[1], houseType)
	}
	return true
}

// IsHouseSpecific reports whether r is tied to houseType rather than shared
// by the whole development.
func IsHouseSpecific(r Record, houseType string) bool {
	if houseType == "" {
		return false
	}

	if containsFold(metaStrings(r.Metadata, "house_types", "houseTypes"), houseType) {
		return true
	}
	if ut, ok := metaString(r.Metadata, "unit_type"); ok && strings.EqualFold(ut, houseType) {
		return true
	}
	if strings.EqualFold(r.HouseTypeCode, houseType) {
		return true
	}

	p := houseTypePattern(houseType)
	if tags := metaStrings(r.Metadata, "tags"); tags != nil && p.MatchString(strings.Join(tags, " ")) {
		return true
	}
	return p.MatchString(r.Title)
}

// Format turns a visible record into what the purchaser is sent.
func Format(r Record, houseType string) Document {
	discipline, _ := metaString(r.Metadata, "discipline")
	category, ok := metaString(r.Metadata, "category")
	if !ok {
		category = Categorise(discipline, r.Title)
	}

	return Document{
		ID:              r.ID,
		Title:           r.Title,
		FileURL:         r.FileURL,
		FileType:        r.MimeType,
		CreatedAt:       r.CreatedAt,
		Metadata:        r.Metadata,
		Category:        category,
		IsHouseSpecific: IsHouseSpecific(r, houseType),
		IsImportant:     r.IsImportant,
		ImportantRank:   r.ImportantRank,
		MustRead:        r.MustRead || r.IsImportant,
	}
}

// ForUnit filters records down to those visible to houseType, skipping
// superseded ones, and formats them. Order is preserved.
func ForUnit(records []Record, houseType string) []Document {
	docs := make([]Document, 0, len(records))
	for _, r := range records {
		if r.IsSuperseded || !VisibleTo(r, houseType) {
			continue
		}
		docs = append(docs, Format(r, houseType))
	}
	return docs
}

// Find returns the document with id, if present.
func Find(docs []Document, id string) (Document, bool) {
	for _, d := range docs {
		if d.ID == id {
			return d, true
		}
	}
	return Document{}, false
}
