// Package annotationkit provides the data model and helpers behind an image
// labeling tool.
//
// Basic usage:
//
//	kit := annotationkit.NewWithConfig(annotationkit.Config{
//		Palette:            map[string][]int{"car": {255, 0, 0}},
//		RequiredAttributes: []string{"class"},
//		Precision:          4,
//	})
//
//	rec, err := kit.LoadRecord("street.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	report := kit.Check(rec)
//	if !report.Ready {
//		for _, issue := range report.Issues {
//			fmt.Printf("object %s is missing %v\n", issue.ID, issue.Missing)
//		}
//	}
//
//	img, _ := kit.LoadImage("street.jpg")
//	overlay := kit.RenderOverlay(img, rec)
//
// The package consists of these components:
//
//  1. Numeric (pkg/numeric): floor and nearest rounding at a fixed precision
//  2. Color tokens (pkg/colortoken): RGB triples to "#RRGGBB" or "transparent"
//  3. Attributes (pkg/attribute): attribute values and the required-value check
//  4. Types (pkg/types): the AnnotationRecord shape
//  5. Record (pkg/record): JSON codec, geometry formatting and submit checks
//  6. Processing (pkg/processing): image I/O and overlay rendering
//  7. Prelabel (pkg/prelabel): draft records from a vision model
package annotationkit

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/menta2k/annotation-kit/pkg/colortoken"
	"github.com/menta2k/annotation-kit/pkg/processing"
	"github.com/menta2k/annotation-kit/pkg/record"
	"github.com/menta2k/annotation-kit/pkg/types"
)

// Version of the annotation kit library
const Version = "1.0.0"

// Config holds the settings of a Kit
type Config struct {
	Palette            map[string][]int
	RequiredAttributes []string
	Precision          int
	Overlay            processing.OverlayOptions
}

// Kit ties the record, color and image helpers together
type Kit struct {
	processor *processing.Processor
	palette   *colortoken.Palette
	config    Config
}

// New creates a Kit with default configuration
func New() *Kit {
	return NewWithConfig(Config{
		Precision: record.DefaultPrecision,
		Overlay:   processing.OverlayOptions{Labels: true},
	})
}

// NewWithConfig creates a Kit with custom configuration
func NewWithConfig(config Config) *Kit {
	palette := colortoken.NewPalette(config.Palette)
	return &Kit{
		processor: processing.NewProcessor(palette),
		palette:   palette,
		config:    config,
	}
}

// Palette returns the class palette used for rendering
func (k *Kit) Palette() *colortoken.Palette {
	return k.palette
}

// Processor returns the image processor used by the kit
func (k *Kit) Processor() *processing.Processor {
	return k.processor
}

// LoadRecord loads and validates a record from a JSON file
func (k *Kit) LoadRecord(path string) (*types.AnnotationRecord, error) {
	return record.Load(path)
}

// SaveRecord writes rec with its geometry rounded to the configured precision.
// rec itself is not modified.
func (k *Kit) SaveRecord(rec *types.AnnotationRecord, path string) error {
	formatted := record.FormatGeometry(*rec, k.config.Precision)
	return record.Save(&formatted, path)
}

// Check reports objects missing required attributes
func (k *Kit) Check(rec *types.AnnotationRecord) record.SubmitReport {
	return record.ReadyToSubmit(rec, k.config.RequiredAttributes)
}

// ColorToken returns the color token an object renders with
func (k *Kit) ColorToken(obj types.AnnotatedObject) string {
	return k.processor.ObjectToken(obj)
}

// LoadImage loads an image from a file path or URL
func (k *Kit) LoadImage(source string) (image.Image, error) {
	return k.processor.LoadImageSmart(source)
}

// RenderOverlay draws rec on a copy of img
func (k *Kit) RenderOverlay(img image.Image, rec *types.AnnotationRecord) image.Image {
	return k.processor.RenderOverlay(img, rec, k.config.Overlay)
}

// Result summarizes ProcessImageFile
type Result struct {
	Report      record.SubmitReport
	RecordPath  string
	OverlayPath string
}

// ProcessImageFile loads an image and its record, fills in the image size,
// saves the formatted record and a PNG overlay into outputDir
func (k *Kit) ProcessImageFile(imagePath, recordPath, outputDir string) (Result, error) {
	img, err := k.LoadImage(imagePath)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load image: %w", err)
	}

	rec, err := k.LoadRecord(recordPath)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load record: %w", err)
	}
	k.processor.FillDimensions(rec, img)

	base := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
	result := Result{
		Report:      k.Check(rec),
		RecordPath:  filepath.Join(outputDir, base+".json"),
		OverlayPath: filepath.Join(outputDir, base+"_overlay.png"),
	}

	if err := k.SaveRecord(rec, result.RecordPath); err != nil {
		return Result{}, fmt.Errorf("failed to save record: %w", err)
	}

	overlay := k.RenderOverlay(img, rec)
	if err := k.processor.SaveImage(overlay, result.OverlayPath, "png", 0, false); err != nil {
		return Result{}, fmt.Errorf("failed to save overlay: %w", err)
	}

	return result, nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
