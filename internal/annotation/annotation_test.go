package annotation

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func fp(f float64) *float64 { return &f }

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]interface{}
		want Annotation
	}{
		{
			name: "text",
			raw:  map[string]interface{}{"kind": "text", "pageIndex": float64(1), "x": float64(10), "y": float64(20), "value": "Hi"},
			want: Annotation{Kind: KindText, PageIndex: 1, X: 10, Y: 20, Payload: Text{Value: "Hi"}},
		},
		{
			name: "legacy type key",
			raw:  map[string]interface{}{"type": "text", "value": "Hi"},
			want: Annotation{Kind: KindText, Payload: Text{Value: "Hi"}},
		},
		{
			name: "numeric strings",
			raw:  map[string]interface{}{"kind": "text", "pageIndex": "2", "x": "12.5", "y": " 7 ", "width": "30", "height": "15"},
			want: Annotation{Kind: KindText, PageIndex: 2, X: 12.5, Y: 7, Width: fp(30), Height: fp(15), Payload: Text{}},
		},
		{
			name: "malformed numbers default",
			raw:  map[string]interface{}{"kind": "text", "pageIndex": "two", "x": "left", "y": []interface{}{}, "width": "wide", "height": float64(0)},
			want: Annotation{Kind: KindText, Payload: Text{}},
		},
		{
			name: "fractional page index truncates",
			raw:  map[string]interface{}{"kind": "text", "pageIndex": 2.7},
			want: Annotation{Kind: KindText, PageIndex: 2, Payload: Text{}},
		},
		{
			name: "typed signature",
			raw: map[string]interface{}{"kind": "signature", "value": map[string]interface{}{
				"type": "typed", "text": "Jane",
			}},
			want: Annotation{Kind: KindSignature, Payload: TypedSignature{Text: "Jane"}},
		},
		{
			name: "saved signature",
			raw: map[string]interface{}{"kind": "signature", "removed": true, "value": map[string]interface{}{
				"type": "saved", "filename": "abc.png",
			}},
			want: Annotation{Kind: KindSignature, Removed: true, Payload: SavedSignature{Filename: "abc.png"}},
		},
		{
			name: "drawn is the default signature type",
			raw: map[string]interface{}{"kind": "signature", "value": map[string]interface{}{
				"dataURL": "data:image/png;base64,AAAA",
			}},
			want: Annotation{Kind: KindSignature, Payload: DrawnSignature{DataURL: "data:image/png;base64,AAAA"}},
		},
		{
			name: "signature without value",
			raw:  map[string]interface{}{"kind": "signature"},
			want: Annotation{Kind: KindSignature, Payload: DrawnSignature{}},
		},
		{
			name: "unknown kind",
			raw:  map[string]interface{}{"kind": "highlight"},
			want: Annotation{Kind: "highlight", Payload: Unsupported{Kind: "highlight"}},
		},
		{
			name: "removed as string",
			raw:  map[string]interface{}{"kind": "text", "removed": "true"},
			want: Annotation{Kind: KindText, Removed: true, Payload: Text{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.raw, 0)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExplicitSize(t *testing.T) {
	a := Annotation{Width: fp(40)}
	if _, _, ok := a.ExplicitSize(); ok {
		t.Error("ExplicitSize with only width should not be ok")
	}
	a.Height = fp(20)
	w, h, ok := a.ExplicitSize()
	if !ok || w != 40 || h != 20 {
		t.Errorf("ExplicitSize() = %v, %v, %v", w, h, ok)
	}
}

func TestDecode(t *testing.T) {
	data := []byte(`[
		{"kind":"text","pageIndex":0,"x":10,"y":20,"value":"Hi"},
		"garbage",
		{"kind":"signature","pageIndex":1,"value":{"type":"typed","text":"Jane"}}
	]`)

	anns, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(anns) != 3 {
		t.Fatalf("expected 3 annotations, got %d", len(anns))
	}
	for i, a := range anns {
		if a.Index != i {
			t.Errorf("annotation %d has Index %d", i, a.Index)
		}
	}
	if _, ok := anns[1].Payload.(Unsupported); !ok {
		t.Errorf("non-object element should be Unsupported, got %T", anns[1].Payload)
	}

	if _, err := Decode([]byte(`{"kind":"text"}`)); err == nil {
		t.Error("expected error for non-array input")
	}
}

func TestGroup(t *testing.T) {
	anns := ParseList([]map[string]interface{}{
		{"kind": "text", "pageIndex": float64(1), "value": "a"},
		{"kind": "text", "pageIndex": float64(0), "value": "b"},
		{"kind": "text", "pageIndex": float64(1), "value": "c", "removed": true},
		{"kind": "text", "pageIndex": float64(1), "value": "d"},
	})

	groups := Group(anns)

	if diff := cmp.Diff([]int{0, 1}, Pages(groups)); diff != "" {
		t.Errorf("Pages() mismatch (-want +got):\n%s", diff)
	}

	var page1 []string
	for _, a := range groups[1] {
		page1 = append(page1, a.Payload.(Text).Value)
	}
	if diff := cmp.Diff([]string{"a", "d"}, page1); diff != "" {
		t.Errorf("page 1 order mismatch (-want +got):\n%s", diff)
	}

	if len(Group(nil)) != 0 {
		t.Error("Group(nil) should be empty")
	}
}

func TestVariant(t *testing.T) {
	tests := []struct {
		p    Payload
		want string
	}{
		{Text{}, "text"},
		{TypedSignature{}, "signature/typed"},
		{DrawnSignature{}, "signature/drawn"},
		{SavedSignature{}, "signature/saved"},
		{Unsupported{Kind: "x"}, "unsupported/x"},
	}
	for _, tt := range tests {
		if got := tt.p.Variant(); got != tt.want {
			t.Errorf("%T.Variant() = %q, want %q", tt.p, got, tt.want)
		}
	}
}
