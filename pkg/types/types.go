package types

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/menta2k/annotation-kit/pkg/attribute"
)

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Empty reports whether the box has no area
func (b Box) Empty() bool {
	return b.W <= 0 || b.H <= 0
}

// Point is a normalized polygon or keypoint vertex
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// AnnotatedObject is one labeled shape within an image.
//
// Color holds the class RGB triple as configured; it is encoded to a color
// token only when rendering.
type AnnotatedObject struct {
	ID         string               `json:"id" validate:"required"`
	Class      string               `json:"class"`
	Color      []int                `json:"color,omitempty"`
	Box        Box                  `json:"box"`
	Points     []Point              `json:"points,omitempty"`
	Attributes attribute.Attributes `json:"attributes"`
}

// AnnotationRecord describes one labeled image.
//
// Width and Height are in pixels; zero means the image has not been loaded
// yet. Objects are kept in display order and that order survives a
// load/edit/save cycle.
type AnnotationRecord struct {
	ImageID  string            `json:"image_id"`
	FileName string            `json:"file_name"`
	Width    int               `json:"width" validate:"gte=0"`
	Height   int               `json:"height" validate:"gte=0"`
	Objects  []AnnotatedObject `json:"objects" validate:"dive"`
}

// ErrDuplicateObjectID is returned by Validate when two objects share an ID
var ErrDuplicateObjectID = errors.New("duplicate object id")

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func recordValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks dimensions and object identity
func (r *AnnotationRecord) Validate() error {
	if err := recordValidator().Struct(r); err != nil {
		return fmt.Errorf("invalid annotation record: %w", err)
	}

	seen := make(map[string]struct{}, len(r.Objects))
	for _, obj := range r.Objects {
		if _, ok := seen[obj.ID]; ok {
			return fmt.Errorf("invalid annotation record: %w: %s", ErrDuplicateObjectID, obj.ID)
		}
		seen[obj.ID] = struct{}{}
	}
	return nil
}

// Clone returns a deep copy of the record
func (r AnnotationRecord) Clone() AnnotationRecord {
	out := r
	if r.Objects == nil {
		return out
	}
	out.Objects = make([]AnnotatedObject, len(r.Objects))
	for i, obj := range r.Objects {
		out.Objects[i] = obj.Clone()
	}
	return out
}

// Clone returns a deep copy of the object
func (o AnnotatedObject) Clone() AnnotatedObject {
	out := o
	if o.Color != nil {
		out.Color = append([]int(nil), o.Color...)
	}
	if o.Points != nil {
		out.Points = append([]Point(nil), o.Points...)
	}
	if o.Attributes != nil {
		out.Attributes = make(attribute.Attributes, len(o.Attributes))
		for name, v := range o.Attributes {
			if list, ok := v.(attribute.NumericList); ok && list != nil {
				v = append(attribute.NumericList{}, list...)
			}
			out.Attributes[name] = v
		}
	}
	return out
}

// Primary represents the primary subject detected in an image
type Primary struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
	Cx         float64 `json:"cx"`
	Cy         float64 `json:"cy"`
}

// AnalysisResult contains the complete analysis result from the vision model
type AnalysisResult struct {
	Primary     Primary   `json:"primary"`
	Objects     []Primary `json:"objects,omitempty"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
}
