// Package annotation models the marks a user places in the editor: free text
// and three kinds of signature. Client payloads are parsed leniently; a bad
// field degrades to a default instead of failing the request.
package annotation

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind is the top-level annotation tag.
type Kind string

const (
	KindText      Kind = "text"
	KindSignature Kind = "signature"
)

// SignatureType selects how a signature payload is sourced.
type SignatureType string

const (
	SignatureSaved SignatureType = "saved"
	SignatureTyped SignatureType = "typed"
	SignatureDrawn SignatureType = "drawn"
)

// Payload is one of Text, TypedSignature, DrawnSignature, SavedSignature or
// Unsupported.
type Payload interface {
	Variant() string
	isPayload()
}

// Text is a free-text mark. An empty Value draws nothing.
type Text struct {
	Value string
}

// TypedSignature is rendered in the cursive face, or the oblique fallback.
type TypedSignature struct {
	Text string
}

// DrawnSignature carries a base64 raster as a data URL
// ("data:image/png;base64,....").
type DrawnSignature struct {
	DataURL string
}

// SavedSignature references a file in the signature store.
type SavedSignature struct {
	Filename string
}

// Unsupported keeps annotations of unknown kind in the list so outcomes stay
// index-aligned with the request.
type Unsupported struct {
	Kind string
}

func (Text) Variant() string           { return "text" }
func (TypedSignature) Variant() string { return "signature/typed" }
func (DrawnSignature) Variant() string { return "signature/drawn" }
func (SavedSignature) Variant() string { return "signature/saved" }
func (u Unsupported) Variant() string  { return "unsupported/" + u.Kind }

func (Text) isPayload()           {}
func (TypedSignature) isPayload() {}
func (DrawnSignature) isPayload() {}
func (SavedSignature) isPayload() {}
func (Unsupported) isPayload()    {}

// Annotation is one parsed mark in editor space (top-left origin).
type Annotation struct {
	// Index is the position in the request list.
	Index     int
	Kind      Kind
	PageIndex int
	X, Y      float64
	// Width and Height are nil unless the client sent a positive number.
	Width, Height *float64
	Removed       bool
	Payload       Payload
}

// ExplicitSize reports the client-requested draw size when both dimensions
// were supplied.
func (a Annotation) ExplicitSize() (w, h float64, ok bool) {
	if a.Width == nil || a.Height == nil {
		return 0, 0, false
	}
	return *a.Width, *a.Height, true
}

func (a Annotation) String() string {
	return fmt.Sprintf("#%d %s page=%d (%.1f,%.1f)", a.Index, a.Payload.Variant(), a.PageIndex, a.X, a.Y)
}

// Parse converts one raw client mapping. It never fails.
func Parse(raw map[string]interface{}, index int) Annotation {
	a := Annotation{
		Index:     index,
		PageIndex: toInt(raw["pageIndex"]),
		X:         toFloat(raw["x"]),
		Y:         toFloat(raw["y"]),
		Width:     toSize(raw["width"]),
		Height:    toSize(raw["height"]),
		Removed:   toBool(raw["removed"]),
	}

	// Older clients send the tag as "type".
	kind, _ := raw["kind"].(string)
	if kind == "" {
		kind, _ = raw["type"].(string)
	}
	a.Kind = Kind(kind)

	switch a.Kind {
	case KindText:
		a.Payload = Text{Value: toString(raw["value"])}
	case KindSignature:
		a.Payload = parseSignature(raw["value"])
	default:
		a.Payload = Unsupported{Kind: kind}
	}
	return a
}

func parseSignature(v interface{}) Payload {
	switch val := v.(type) {
	case map[string]interface{}:
		t, _ := val["type"].(string)
		switch SignatureType(t) {
		case SignatureSaved:
			return SavedSignature{Filename: toString(val["filename"])}
		case SignatureTyped:
			return TypedSignature{Text: toString(val["text"])}
		default:
			return DrawnSignature{DataURL: toString(val["dataURL"])}
		}
	case string:
		// bare data URL
		return DrawnSignature{DataURL: val}
	default:
		return DrawnSignature{}
	}
}

// ParseList parses raw mappings in order.
func ParseList(raws []map[string]interface{}) []Annotation {
	out := make([]Annotation, 0, len(raws))
	for i, raw := range raws {
		out = append(out, Parse(raw, i))
	}
	return out
}

// Decode parses a JSON array of annotation objects. Only a malformed array
// is an error; elements that are not objects become Unsupported entries.
func Decode(data []byte) ([]Annotation, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("annotations must be a JSON array: %w", err)
	}
	out := make([]Annotation, 0, len(items))
	for i, item := range items {
		var raw map[string]interface{}
		if err := json.Unmarshal(item, &raw); err != nil || raw == nil {
			out = append(out, Annotation{Index: i, Payload: Unsupported{}})
			continue
		}
		out = append(out, Parse(raw, i))
	}
	return out, nil
}

// Group drops removed annotations and buckets the rest by page, keeping
// request order inside each page (request order is paint order).
func Group(anns []Annotation) map[int][]Annotation {
	groups := make(map[int][]Annotation)
	for _, a := range anns {
		if a.Removed {
			continue
		}
		groups[a.PageIndex] = append(groups[a.PageIndex], a)
	}
	return groups
}

// Pages returns the page indices of groups in ascending order.
func Pages(groups map[int][]Annotation) []int {
	pages := make([]int, 0, len(groups))
	for p := range groups {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

func toFloat(v interface{}) float64 {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case int:
		f = float64(val)
	case json.Number:
		f, _ = val.Float64()
	case string:
		f, _ = strconv.ParseFloat(strings.TrimSpace(val), 64)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func toInt(v interface{}) int {
	switch val := v.(type) {
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0
		}
		return n
	case bool:
		if val {
			return 1
		}
		return 0
	}
	f := toFloat(v)
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0
	}
	return int(f)
}

func toSize(v interface{}) *float64 {
	if v == nil {
		return nil
	}
	f := toFloat(v)
	if f <= 0 {
		return nil
	}
	return &f
}

func toBool(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(val))
		return b
	case float64:
		return val != 0
	}
	return false
}

func toString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}
