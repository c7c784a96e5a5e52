package prelabel

import (
	"context"

	"github.com/menta2k/annotation-kit/pkg/types"
)

// VisionClient sends an image and prompt to a vision model and parses the
// detections it returns
type VisionClient interface {
	AnalyzeImage(ctx context.Context, model, prompt, imgB64 string) (*types.AnalysisResult, error)
}
