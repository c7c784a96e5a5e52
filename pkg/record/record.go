// Package record loads and saves annotation records and prepares them for
// persistence and submission.
package record

import (
	"bytes"
	stdjson "encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"

	"github.com/menta2k/annotation-kit/pkg/attribute"
	"github.com/menta2k/annotation-kit/pkg/numeric"
	"github.com/menta2k/annotation-kit/pkg/types"
)

// DefaultPrecision is the number of fractional digits kept for normalized
// coordinates when a record is saved.
const DefaultPrecision = 4

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Load reads a record from a JSON file
func Load(path string) (*types.AnnotationRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open record file: %w", err)
	}
	defer file.Close()

	return Decode(file)
}

// Decode reads a record from r and validates it
func Decode(r io.Reader) (*types.AnnotationRecord, error) {
	var rec types.AnnotationRecord
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to parse record: %w", err)
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	fillAttributes(&rec)
	return &rec, nil
}

// Encode writes rec to w as indented JSON. Objects without attributes are
// written with an empty attributes object. rec is not modified.
func Encode(w io.Writer, rec *types.AnnotationRecord) error {
	out := rec.Clone()
	fillAttributes(&out)

	data, err := json.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	var buf bytes.Buffer
	if err := stdjson.Indent(&buf, data, "", "  "); err != nil {
		return fmt.Errorf("failed to indent record: %w", err)
	}
	buf.WriteByte('\n')
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// fillAttributes replaces nil attribute maps with empty ones.
func fillAttributes(rec *types.AnnotationRecord) {
	for i := range rec.Objects {
		if rec.Objects[i].Attributes == nil {
			rec.Objects[i].Attributes = attribute.Attributes{}
		}
	}
}

// Save validates rec and writes it to path, creating the directory if needed
func Save(rec *types.AnnotationRecord, path string) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create record directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create record file: %w", err)
	}
	defer file.Close()

	return Encode(file, rec)
}

// FormatGeometry returns a copy of rec with every box and point coordinate
// rounded to precision fractional digits. rec is left untouched.
func FormatGeometry(rec types.AnnotationRecord, precision int) types.AnnotationRecord {
	out := rec.Clone()
	for i := range out.Objects {
		obj := &out.Objects[i]
		obj.Box = FormatBox(obj.Box, precision)
		for j := range obj.Points {
			obj.Points[j].X = numeric.FixedFloatNum(obj.Points[j].X, precision)
			obj.Points[j].Y = numeric.FixedFloatNum(obj.Points[j].Y, precision)
		}
	}
	return out
}

// FormatBox rounds each box coordinate to precision fractional digits
func FormatBox(b types.Box, precision int) types.Box {
	return types.Box{
		X: numeric.FixedFloatNum(b.X, precision),
		Y: numeric.FixedFloatNum(b.Y, precision),
		W: numeric.FixedFloatNum(b.W, precision),
		H: numeric.FixedFloatNum(b.H, precision),
	}
}

// PixelArea returns the pixel area covered by b in rec, floored to precision
// fractional digits so it never overstates the measured area. It is 0 while
// the record's dimensions are unknown.
func PixelArea(rec *types.AnnotationRecord, b types.Box, precision int) float64 {
	if rec.Width == 0 || rec.Height == 0 || b.Empty() {
		return 0
	}
	area := b.W * float64(rec.Width) * b.H * float64(rec.Height)
	return numeric.FloorFloatNum(area, precision)
}

// ObjectIssue lists the required attributes missing on one object
type ObjectIssue struct {
	Index   int      `json:"index"`
	ID      string   `json:"id"`
	Missing []string `json:"missing"`
}

// SubmitReport is the result of ReadyToSubmit
type SubmitReport struct {
	Ready  bool          `json:"ready"`
	Issues []ObjectIssue `json:"issues,omitempty"`
}

// ReadyToSubmit checks every object for empty required attributes. The
// report lists objects in record order.
func ReadyToSubmit(rec *types.AnnotationRecord, required []string) SubmitReport {
	var issues []ObjectIssue
	for i, obj := range rec.Objects {
		missing := attribute.MissingRequired(obj.Attributes, required)
		if len(missing) > 0 {
			issues = append(issues, ObjectIssue{Index: i, ID: obj.ID, Missing: missing})
		}
	}
	return SubmitReport{Ready: len(issues) == 0, Issues: issues}
}
