package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	annotationkit "github.com/menta2k/annotation-kit"
	"github.com/menta2k/annotation-kit/internal/config"
	"github.com/menta2k/annotation-kit/internal/log"
	"github.com/menta2k/annotation-kit/pkg/numeric"
	"github.com/menta2k/annotation-kit/pkg/prelabel"
	"github.com/menta2k/annotation-kit/pkg/prelabel/ollama"
	"github.com/menta2k/annotation-kit/pkg/processing"
	"github.com/menta2k/annotation-kit/pkg/record"
	"github.com/menta2k/annotation-kit/pkg/types"
)

func main() {
	var imagePath, recordPath, outDir, configPath string
	var required string
	var precision int
	var prelabelFlag bool
	var url, model string
	var noOverlay bool

	flag.StringVar(&imagePath, "image", "", "input image path or URL (jpg/png/webp)")
	flag.StringVar(&recordPath, "record", "", "annotation record JSON (omit with -prelabel to create one)")
	flag.StringVar(&outDir, "out", "", "output directory (default from config)")
	flag.StringVar(&configPath, "config", "", "config file (JSON)")
	flag.StringVar(&required, "required", "", "comma separated required attribute names (overrides config)")
	flag.IntVar(&precision, "precision", -1, "fractional digits kept for coordinates (overrides config)")
	flag.BoolVar(&prelabelFlag, "prelabel", false, "create a draft record with a vision model")
	flag.StringVar(&url, "url", "", "ollama server URL (overrides config)")
	flag.StringVar(&model, "model", "", "vision model name (overrides config)")
	flag.BoolVar(&noOverlay, "no-overlay", false, "skip writing the overlay image")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	applyFlags(cfg, outDir, required, precision, url, model)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	log.Init(log.Options{Level: cfg.Log.Level, File: cfg.Log.File})

	if imagePath == "" || (recordPath == "" && !prelabelFlag) {
		log.Fatal(nil, fmt.Sprintf("usage: %s -image photo.jpg (-record photo.json | -prelabel) [-out dir] [-required a,b] [-precision 4]",
			filepath.Base(os.Args[0])))
	}
	if err := os.MkdirAll(cfg.Output.OutputDir, 0o755); err != nil {
		log.Fatal(log.Fields{"dir": cfg.Output.OutputDir, "error": err.Error()}, "failed to create output directory")
	}

	kit := annotationkit.NewWithConfig(annotationkit.Config{
		Palette:            cfg.Palette,
		RequiredAttributes: cfg.Annotation.RequiredAttributes,
		Precision:          cfg.Annotation.Precision,
		Overlay: processing.OverlayOptions{
			Labels:    cfg.Output.Labels,
			FillAlpha: cfg.Output.FillAlpha,
		},
	})

	img, err := kit.LoadImage(imagePath)
	if err != nil {
		log.Fatal(log.Fields{"image": imagePath, "error": err.Error()}, "failed to load image")
	}

	var rec *types.AnnotationRecord
	if prelabelFlag {
		rec, err = prelabelRecord(cfg, kit, img, filepath.Base(imagePath))
	} else {
		rec, err = kit.LoadRecord(recordPath)
	}
	if err != nil {
		log.Fatal(log.Fields{"error": err.Error()}, "failed to obtain annotation record")
	}

	kit.Processor().FillDimensions(rec, img)
	logRecord(kit, rec, cfg.Annotation.Precision)

	report := kit.Check(rec)
	for _, issue := range report.Issues {
		log.Warn(log.Fields{
			"object":  issue.ID,
			"index":   issue.Index,
			"missing": strings.Join(issue.Missing, ","),
		}, "required attributes are empty")
	}
	log.Info(log.Fields{"ready": report.Ready, "objects": len(rec.Objects)}, "submit check")

	base := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
	outRecord := filepath.Join(cfg.Output.OutputDir, base+".json")
	if err := kit.SaveRecord(rec, outRecord); err != nil {
		log.Fatal(log.Fields{"path": outRecord, "error": err.Error()}, "failed to save record")
	}
	log.Info(log.Fields{"path": outRecord}, "wrote record")

	if !noOverlay {
		ext := strings.ToLower(cfg.Output.OverlayFormat)
		outOverlay := filepath.Join(cfg.Output.OutputDir, fmt.Sprintf("%s_overlay.%s", base, ext))
		overlay := kit.RenderOverlay(img, rec)
		if err := kit.Processor().SaveImage(overlay, outOverlay, ext, cfg.Output.Quality, false); err != nil {
			log.Error(log.Fields{"path": outOverlay, "error": err.Error()}, "overlay save failed")
		} else {
			log.Info(log.Fields{"path": outOverlay}, "wrote overlay")
		}
	}

	if !report.Ready {
		os.Exit(1)
	}
}

func applyFlags(cfg *config.Config, outDir, required string, precision int, url, model string) {
	if outDir != "" {
		cfg.Output.OutputDir = outDir
	}
	if required != "" {
		cfg.Annotation.RequiredAttributes = splitList(required)
	}
	if precision >= 0 {
		cfg.Annotation.Precision = precision
	}
	if url != "" {
		cfg.Prelabel.URL = url
	}
	if model != "" {
		cfg.Prelabel.Model = model
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func prelabelRecord(cfg *config.Config, kit *annotationkit.Kit, img image.Image, fileName string) (*types.AnnotationRecord, error) {
	client, err := ollama.NewClient(cfg.Prelabel.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}

	labeler := prelabel.NewWithConfig(client, kit.Palette(), prelabel.Config{
		SendFormat:    cfg.Prelabel.SendFormat,
		SendSize:      cfg.Prelabel.SendSize,
		SendQuality:   cfg.Prelabel.SendQuality,
		MinConfidence: cfg.Prelabel.MinConfidence,
		Precision:     cfg.Annotation.Precision,
	})

	log.Info(log.Fields{"url": cfg.Prelabel.URL, "model": cfg.Prelabel.Model}, "pre-labeling image")
	return labeler.Label(context.Background(), cfg.Prelabel.Model, img, fileName)
}

func logRecord(kit *annotationkit.Kit, rec *types.AnnotationRecord, precision int) {
	log.Info(log.Fields{
		"image_id": rec.ImageID,
		"file":     rec.FileName,
		"size":     fmt.Sprintf("%dx%d", rec.Width, rec.Height),
	}, "annotation record")

	for _, obj := range rec.Objects {
		log.Debug(log.Fields{
			"object": obj.ID,
			"class":  obj.Class,
			"color":  kit.ColorToken(obj),
			"box": fmt.Sprintf("%s,%s %sx%s",
				numeric.FormatFixed(obj.Box.X, precision), numeric.FormatFixed(obj.Box.Y, precision),
				numeric.FormatFixed(obj.Box.W, precision), numeric.FormatFixed(obj.Box.H, precision)),
			"area_px": record.PixelArea(rec, obj.Box, 0),
		}, "object")
	}
}
