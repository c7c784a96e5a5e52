// Package prelabel turns vision-model detections into draft annotation
// records that a human labeler then reviews.
package prelabel

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/google/uuid"

	"github.com/menta2k/annotation-kit/pkg/attribute"
	"github.com/menta2k/annotation-kit/pkg/colortoken"
	"github.com/menta2k/annotation-kit/pkg/numeric"
	"github.com/menta2k/annotation-kit/pkg/processing"
	"github.com/menta2k/annotation-kit/pkg/record"
	"github.com/menta2k/annotation-kit/pkg/types"
)

// DefaultPrompt asks the model for every labelable object in the image
const DefaultPrompt = `You are an image annotation assistant.

Return JSON only:
{
  "primary": {"label": "string", "confidence": 0.0, "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}, "cx": 0.0, "cy": 0.0},
  "objects": [
    {"label": "string", "confidence": 0.0, "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}, "cx": 0.0, "cy": 0.0}
  ],
  "description": "short neutral sentence (≤ 20 words)",
  "tags": ["tag1", "tag2", "tag3"]
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels). x,y is the top-left corner.
- "objects" lists every distinct object worth labeling, most prominent first, at most 20.
- "primary" repeats the most prominent object.
- Labels: lowercase singular nouns ("car", "person", "traffic light").
- If nothing is found, return "objects": [] and a primary with label "none".
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// Attribute names set on pre-labeled objects
const (
	AttrConfidence = "confidence"
	AttrSource     = "source"
)

// Config holds options for a Labeler
type Config struct {
	Prompt        string
	SendFormat    string
	SendSize      int
	SendQuality   int
	MinConfidence float64
	Precision     int
}

// DefaultConfig returns the settings used by New
func DefaultConfig() Config {
	return Config{
		Prompt:        DefaultPrompt,
		SendFormat:    "jpg",
		SendSize:      1536,
		SendQuality:   85,
		MinConfidence: 0.3,
		Precision:     record.DefaultPrecision,
	}
}

// Labeler produces draft annotation records from a vision model
type Labeler struct {
	client    VisionClient
	processor *processing.Processor
	palette   *colortoken.Palette
	config    Config
	newID     func() string
}

// New creates a Labeler with default configuration
func New(client VisionClient, palette *colortoken.Palette) *Labeler {
	return NewWithConfig(client, palette, DefaultConfig())
}

// NewWithConfig creates a Labeler with custom configuration
func NewWithConfig(client VisionClient, palette *colortoken.Palette, config Config) *Labeler {
	if config.Prompt == "" {
		config.Prompt = DefaultPrompt
	}
	return &Labeler{
		client:    client,
		processor: processing.NewProcessor(palette),
		palette:   palette,
		config:    config,
		newID:     uuid.NewString,
	}
}

// Label sends img to the model and converts its answer into a record with a
// fresh image ID and the image's pixel size
func (l *Labeler) Label(ctx context.Context, model string, img image.Image, fileName string) (*types.AnnotationRecord, error) {
	imgB64, err := l.processor.PrepareImageForModel(img, l.config.SendFormat, l.config.SendSize, l.config.SendQuality)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare image: %w", err)
	}

	result, err := l.client.AnalyzeImage(ctx, model, l.config.Prompt, imgB64)
	if err != nil {
		return nil, fmt.Errorf("vision model request failed: %w", err)
	}

	rec := l.ToRecord(result, "model:"+model)
	rec.FileName = fileName
	l.processor.FillDimensions(rec, img)
	return rec, nil
}

// ToRecord converts a model result into a record. Detections labeled "none",
// below the confidence threshold or with an empty box are dropped.
func (l *Labeler) ToRecord(result *types.AnalysisResult, source string) *types.AnnotationRecord {
	rec := &types.AnnotationRecord{
		ImageID: l.newID(),
		Objects: []types.AnnotatedObject{},
	}

	detections := result.Objects
	if len(detections) == 0 {
		detections = []types.Primary{result.Primary}
	}

	for _, det := range detections {
		label := strings.ToLower(strings.TrimSpace(det.Label))
		if label == "" || label == "none" || det.Confidence < l.config.MinConfidence {
			continue
		}
		box := record.FormatBox(normalizeBox(det.Box), l.config.Precision)
		if box.Empty() {
			continue
		}
		rec.Objects = append(rec.Objects, types.AnnotatedObject{
			ID:    fmt.Sprintf("obj-%d", len(rec.Objects)+1),
			Class: label,
			Color: l.palette.Channels(label),
			Box:   box,
			Attributes: attribute.Attributes{
				AttrConfidence: attribute.Numeric(numeric.FixedFloatNum(clamp(det.Confidence, 0, 1), 2)),
				AttrSource:     attribute.Text(source),
			},
		})
	}

	return rec
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeBox keeps the box inside the unit square
func normalizeBox(b types.Box) types.Box {
	x := clamp(b.X, 0, 1)
	y := clamp(b.Y, 0, 1)
	return types.Box{
		X: x,
		Y: y,
		W: clamp(b.W, 0, 1-x),
		H: clamp(b.H, 0, 1-y),
	}
}
