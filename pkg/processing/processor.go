package processing

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/annotation-kit/pkg/attribute"
	"github.com/menta2k/annotation-kit/pkg/colortoken"
	"github.com/menta2k/annotation-kit/pkg/numeric"
	"github.com/menta2k/annotation-kit/pkg/types"
)

// Processor handles image loading, saving and annotation overlays
type Processor struct {
	palette *colortoken.Palette
}

// NewProcessor creates a new image processor. A nil palette falls back to
// generated per-class colors.
func NewProcessor(palette *colortoken.Palette) *Processor {
	return &Processor{palette: palette}
}

// LoadImageFromURL downloads and loads an image from a URL
func (p *Processor) LoadImageFromURL(imageURL string) (image.Image, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	req, err := http.NewRequest(http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "annotation-kit/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return p.decodeImageFromBytes(imageData)
}

// LoadImage loads an image from a file path with WebP support
func (p *Processor) LoadImage(path string) (image.Image, error) {
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	img, err := p.decodeImageFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, path)
	}
	return img, nil
}

// LoadImageSmart loads an image from either a file path or URL
func (p *Processor) LoadImageSmart(source string) (image.Image, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return p.LoadImageFromURL(source)
	}
	return p.LoadImage(source)
}

func (p *Processor) decodeImageFromBytes(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// PrepareImageForModel converts an image to base64 for sending to vision models
func (p *Processor) PrepareImageForModel(img image.Image, format string, maxDim int, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return "", err
		}
	default: // jpg
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return "", err
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// SaveImage saves an image to a file with the specified format and quality
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
		return webp.Encode(f, img, opts)
	case "png":
		return imaging.Save(img, path)
	default: // jpg/jpeg
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AspectRatio float64 `json:"aspect_ratio"`
}

// GetImageInfo returns basic information about an image. The aspect ratio is
// rounded to three digits for display and is 0 for an empty image.
func (p *Processor) GetImageInfo(img image.Image) ImageInfo {
	bounds := img.Bounds()
	info := ImageInfo{Width: bounds.Dx(), Height: bounds.Dy()}
	if info.Height > 0 {
		info.AspectRatio = numeric.FixedFloatNum(float64(info.Width)/float64(info.Height), 3)
	}
	return info
}

// FillDimensions sets the record's pixel size from the loaded image
func (p *Processor) FillDimensions(rec *types.AnnotationRecord, img image.Image) {
	info := p.GetImageInfo(img)
	rec.Width = info.Width
	rec.Height = info.Height
}

// CropObject crops an image to an object's normalized box. When targetWidth
// and targetHeight are positive the crop is filled to that size.
func (p *Processor) CropObject(img image.Image, box types.Box, targetWidth, targetHeight int) (image.Image, error) {
	bounds := img.Bounds()
	x0, y0, x1, y1 := boxToPixels(box, bounds.Dx(), bounds.Dy())

	rect := image.Rect(x0, y0, x1, y1).Add(bounds.Min).Intersect(bounds)
	if box.Empty() || rect.Empty() {
		return nil, fmt.Errorf("empty crop rectangle")
	}

	cropped := imaging.Crop(img, rect)

	if targetWidth > 0 && targetHeight > 0 {
		cropped = imaging.Fill(cropped, targetWidth, targetHeight, imaging.Center, imaging.Lanczos)
	}

	return cropped, nil
}

// OverlayOptions controls RenderOverlay
type OverlayOptions struct {
	// Labels draws the class name and, when present, the confidence above each box
	Labels bool
	// FillAlpha tints the box interior; 0 draws outlines only
	FillAlpha uint8
}

// ObjectToken returns the color token used to draw obj: its own channels
// when set, otherwise the palette entry for its class.
func (p *Processor) ObjectToken(obj types.AnnotatedObject) string {
	if obj.Color != nil {
		return colortoken.RGBArrayToHex(obj.Color)
	}
	return p.palette.Token(obj.Class)
}

// RenderOverlay draws every object of rec on a copy of img. Objects whose
// color token is transparent are skipped.
func (p *Processor) RenderOverlay(img image.Image, rec *types.AnnotationRecord, opts OverlayOptions) image.Image {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()
	stroke := int(math.Max(2, 0.004*float64(minInt(w, h))))

	for _, obj := range rec.Objects {
		token := p.ObjectToken(obj)
		c, ok := colortoken.ToNRGBA(token, 255)
		if !ok {
			continue
		}

		if !obj.Box.Empty() {
			if opts.FillAlpha > 0 {
				fillBox(nrgba, obj.Box, w, h, color.NRGBA{R: c.R, G: c.G, B: c.B, A: opts.FillAlpha})
			}
			drawBox(nrgba, obj.Box, w, h, c, stroke)
		}
		drawPolyline(nrgba, obj.Points, w, h, c)

		if opts.Labels && !obj.Box.Empty() {
			x0, y0, _, _ := boxToPixels(obj.Box, w, h)
			drawLabel(nrgba, x0+stroke, y0-2, objectLabel(obj), c)
		}
	}

	return nrgba
}

func objectLabel(obj types.AnnotatedObject) string {
	label := obj.Class
	if label == "" {
		label = obj.ID
	}
	if conf, ok := obj.Attributes.Get("confidence").(attribute.Numeric); ok {
		label += " " + numeric.FormatFixed(float64(conf), 2)
	}
	return label
}

// Helper functions
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func boxToPixels(box types.Box, w, h int) (int, int, int, int) {
	x0 := int(clamp(box.X, 0, 1)*float64(w) + 0.5)
	y0 := int(clamp(box.Y, 0, 1)*float64(h) + 0.5)
	x1 := int(clamp(box.X+box.W, 0, 1)*float64(w) + 0.5)
	y1 := int(clamp(box.Y+box.H, 0, 1)*float64(h) + 0.5)
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	return x0, y0, x1, y1
}

func pointToPixels(pt types.Point, w, h int) (int, int) {
	return int(clamp(pt.X, 0, 1)*float64(w) + 0.5), int(clamp(pt.Y, 0, 1)*float64(h) + 0.5)
}

func drawBox(img *image.NRGBA, box types.Box, w, h int, c color.NRGBA, stroke int) {
	x0, y0, x1, y1 := boxToPixels(box, w, h)
	for s := 0; s < stroke; s++ {
		drawHLine(img, y0+s, x0, x1, c)
		drawHLine(img, y1-1-s, x0, x1, c)
		drawVLine(img, x0+s, y0, y1, c)
		drawVLine(img, x1-1-s, y0, y1, c)
	}
}

func fillBox(img *image.NRGBA, box types.Box, w, h int, c color.NRGBA) {
	x0, y0, x1, y1 := boxToPixels(box, w, h)
	rect := image.Rect(x0, y0, x1, y1).Intersect(img.Bounds())
	draw.Draw(img, rect, image.NewUniform(c), image.Point{}, draw.Over)
}

// drawPolyline connects consecutive points and closes the shape when it has
// three or more vertices
func drawPolyline(img *image.NRGBA, pts []types.Point, w, h int, c color.NRGBA) {
	if len(pts) == 1 {
		x, y := pointToPixels(pts[0], w, h)
		drawHLine(img, y, x-3, x+4, c)
		drawVLine(img, x, y-3, y+4, c)
		return
	}
	for i := 1; i < len(pts); i++ {
		drawSegment(img, pts[i-1], pts[i], w, h, c)
	}
	if len(pts) > 2 {
		drawSegment(img, pts[len(pts)-1], pts[0], w, h, c)
	}
}

// drawSegment rasterizes a line with Bresenham's algorithm
func drawSegment(img *image.NRGBA, a, b types.Point, w, h int, c color.NRGBA) {
	x0, y0 := pointToPixels(a, w, h)
	x1, y1 := pointToPixels(b, w, h)
	dx := absInt(x1 - x0)
	dy := -absInt(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		setPixel(img, x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func drawLabel(img *image.NRGBA, x, y int, label string, c color.NRGBA) {
	face := basicfont.Face7x13
	if y-face.Ascent < 0 {
		y = face.Ascent
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(label)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func setPixel(img *image.NRGBA, x, y int, c color.NRGBA) {
	if x < 0 || y < 0 || x >= img.Bounds().Dx() || y >= img.Bounds().Dy() {
		return
	}
	i := y*img.Stride + x*4
	img.Pix[i+0] = c.R
	img.Pix[i+1] = c.G
	img.Pix[i+2] = c.B
	img.Pix[i+3] = c.A
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	if x0 < 0 {
		x0 = 0
	}
	if x1 > img.Bounds().Dx() {
		x1 = img.Bounds().Dx()
	}
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	if y0 < 0 {
		y0 = 0
	}
	if y1 > img.Bounds().Dy() {
		y1 = img.Bounds().Dy()
	}
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
