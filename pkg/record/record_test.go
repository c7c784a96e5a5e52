package record

import (
	"bytes"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/menta2k/annotation-kit/pkg/attribute"
	"github.com/menta2k/annotation-kit/pkg/types"
)

func createTestRecord() *types.AnnotationRecord {
	return &types.AnnotationRecord{
		ImageID:  "0f1c",
		FileName: "street.jpg",
		Width:    400,
		Height:   300,
		Objects: []types.AnnotatedObject{
			{
				ID:    "z",
				Class: "car",
				Color: []int{255, 0, 0},
				Box:   types.Box{X: 0.123456, Y: 0.2, W: 0.5, H: 0.25},
				Attributes: attribute.Attributes{
					"classes":  attribute.NumericList{1, 3},
					"occluded": attribute.Numeric(0),
				},
			},
			{
				ID:     "a",
				Class:  "person",
				Points: []types.Point{{X: 0.333333333, Y: 0.666666666}},
				Attributes: attribute.Attributes{
					"classes": attribute.NumericList{},
					"comment": attribute.Text(""),
				},
			},
			{
				ID:    "m",
				Class: "sign",
				Attributes: attribute.Attributes{
					"classes": attribute.Absent{},
				},
			},
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rec := createTestRecord()

	var buf bytes.Buffer
	if err := Encode(&buf, rec); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if len(decoded.Objects) != len(rec.Objects) {
		t.Fatalf("expected %d objects, got %d", len(rec.Objects), len(decoded.Objects))
	}
	for i := range rec.Objects {
		if decoded.Objects[i].ID != rec.Objects[i].ID {
			t.Errorf("object %d: expected id %s, got %s", i, rec.Objects[i].ID, decoded.Objects[i].ID)
		}
	}
	if !reflect.DeepEqual(decoded.Objects[0].Attributes, rec.Objects[0].Attributes) {
		t.Errorf("attributes changed: %#v", decoded.Objects[0].Attributes)
	}
	if decoded.Width != 400 || decoded.Height != 300 {
		t.Errorf("expected 400x300, got %dx%d", decoded.Width, decoded.Height)
	}
}

func TestEncodeAttributesLayout(t *testing.T) {
	rec := createTestRecord()
	rec.Objects = append(rec.Objects, types.AnnotatedObject{ID: "bare", Class: "tree"})

	var buf bytes.Buffer
	if err := Encode(&buf, rec); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	out := buf.String()

	if strings.Contains(out, `"attributes": null`) {
		t.Errorf("nil attributes encoded as null:\n%s", out)
	}
	if !strings.Contains(out, `"attributes": {}`) {
		t.Errorf("expected empty attributes object:\n%s", out)
	}
	if !strings.Contains(out, "\n        \"occluded\": 0") {
		t.Errorf("attribute members not indented:\n%s", out)
	}
	if rec.Objects[3].Attributes != nil {
		t.Error("Encode modified the input record")
	}

	decoded, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.Objects[3].Attributes == nil {
		t.Error("decoded object has nil attributes")
	}
}

func TestSaveLoad(t *testing.T) {
	rec := createTestRecord()
	path := filepath.Join(t.TempDir(), "nested", "record.json")

	if err := Save(rec, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.ImageID != rec.ImageID || loaded.FileName != rec.FileName {
		t.Errorf("identity changed: %s/%s", loaded.ImageID, loaded.FileName)
	}
	if !reflect.DeepEqual(loaded.Objects[1].Points, rec.Objects[1].Points) {
		t.Errorf("points changed: %v", loaded.Objects[1].Points)
	}
}

func TestDecodeRejectsInvalid(t *testing.T) {
	inputs := []string{
		`{"image_id":"x","width":-1,"height":0,"objects":[]}`,
		`{"image_id":"x","objects":[{"id":"a"},{"id":"a"}]}`,
		`{"image_id":"x","objects":[{"id":"a","attributes":{"flag":true}}]}`,
		`not json`,
	}

	for _, in := range inputs {
		if _, err := Decode(strings.NewReader(in)); err == nil {
			t.Errorf("Decode(%s) should fail", in)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Load should fail for a missing file")
	}
}

func TestFormatGeometry(t *testing.T) {
	rec := createTestRecord()
	formatted := FormatGeometry(*rec, 2)

	if formatted.Objects[0].Box.X != 0.12 {
		t.Errorf("expected box x 0.12, got %v", formatted.Objects[0].Box.X)
	}
	if formatted.Objects[1].Points[0] != (types.Point{X: 0.33, Y: 0.67}) {
		t.Errorf("unexpected point %v", formatted.Objects[1].Points[0])
	}

	// input is not mutated
	if rec.Objects[0].Box.X != 0.123456 {
		t.Errorf("FormatGeometry mutated input box: %v", rec.Objects[0].Box.X)
	}
	if rec.Objects[1].Points[0].X != 0.333333333 {
		t.Errorf("FormatGeometry mutated input points: %v", rec.Objects[1].Points[0])
	}

	again := FormatGeometry(formatted, 2)
	if !reflect.DeepEqual(again, formatted) {
		t.Error("FormatGeometry is not idempotent")
	}
}

func TestPixelArea(t *testing.T) {
	rec := createTestRecord()

	// 0.5*400 * 0.25*300 = 200 * 75
	if area := PixelArea(rec, rec.Objects[0].Box, 0); area != 15000 {
		t.Errorf("expected area 15000, got %v", area)
	}

	box := types.Box{W: 1.0 / 3.0, H: 1}
	rec.Width, rec.Height = 10, 1
	if area := PixelArea(rec, box, 2); area != 3.33 {
		t.Errorf("expected floored area 3.33, got %v", area)
	}

	rec.Width = 0
	if area := PixelArea(rec, box, 2); area != 0 {
		t.Errorf("expected 0 for unknown dimensions, got %v", area)
	}
}

func TestReadyToSubmit(t *testing.T) {
	rec := createTestRecord()

	report := ReadyToSubmit(rec, []string{"classes"})
	if report.Ready {
		t.Error("record with empty required attributes should not be ready")
	}
	if len(report.Issues) != 2 {
		t.Fatalf("expected 2 issues, got %d", len(report.Issues))
	}
	if report.Issues[0].ID != "a" || report.Issues[1].ID != "m" {
		t.Errorf("unexpected issue order: %+v", report.Issues)
	}
	if report.Issues[0].Index != 1 || report.Issues[1].Index != 2 {
		t.Errorf("unexpected issue indices: %+v", report.Issues)
	}

	report = ReadyToSubmit(rec, []string{"occluded"})
	if report.Ready || len(report.Issues) != 2 {
		t.Errorf("expected objects a and m to miss occluded, got %+v", report)
	}

	rec.Objects = rec.Objects[:1]
	report = ReadyToSubmit(rec, []string{"classes", "occluded"})
	if !report.Ready {
		t.Errorf("expected ready, got %+v", report)
	}
}
