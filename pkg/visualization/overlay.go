// Package visualization renders diagnostic images for evaluated mask pairs.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/pkg/errors"
	"golang.org/x/image/font/gofont/goregular"

	"maskeval/internal/models"
	"maskeval/pkg/metrics"
)

var (
	// GroundTruthColor outlines the ground-truth box
	GroundTruthColor = color.RGBA{G: 255, A: 255}
	// PredictionColor outlines the predicted box
	PredictionColor = color.RGBA{R: 255, A: 255}
)

var font *truetype.Font

func init() {
	var err error
	font, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// Visualizer writes IoU and bounding-box overlays for evaluated pairs
type Visualizer struct {
	// iouDir receives the intersection/union overlays
	iouDir string

	// bboxDir receives the bounding-box overlays
	bboxDir string

	// lineWidth is the stroke width of the box outlines in pixels
	lineWidth float64

	// captions draws the box IoU value in the corner of each bbox overlay
	captions bool
}

// NewVisualizer creates a visualizer writing into the given directories
func NewVisualizer(iouDir, bboxDir string, lineWidth float64, captions bool) *Visualizer {
	if lineWidth <= 0 {
		lineWidth = 1
	}
	return &Visualizer{
		iouDir:    iouDir,
		bboxDir:   bboxDir,
		lineWidth: lineWidth,
		captions:  captions,
	}
}

// Prepare creates the output directories
func (v *Visualizer) Prepare() error {
	for _, dir := range []string{v.iouDir, v.bboxDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "failed to create diagnostics directory %s", dir)
		}
	}
	return nil
}

// IoUOverlay paints the intersection of gt and pred into the red channel and
// their union into the green channel. Intersection pixels come out yellow.
func IoUOverlay(gt, pred *models.BinaryMask) (*image.RGBA, error) {
	if !gt.SameSize(pred) {
		return nil, errors.Wrapf(metrics.ErrDimensionMismatch, "ground truth %dx%d, prediction %dx%d",
			gt.Width(), gt.Height(), pred.Width(), pred.Height())
	}

	img := image.NewRGBA(image.Rect(0, 0, gt.Width(), gt.Height()))
	for i := 0; i < gt.Len(); i++ {
		g, p := gt.Index(i), pred.Index(i)
		px := img.Pix[i*4 : i*4+4]
		if g && p {
			px[0] = 255
		}
		if g || p {
			px[1] = 255
		}
		px[3] = 255
	}
	return img, nil
}

// BoxOverlay outlines both boxes on top of base. A nil base gives a black
// canvas of the requested size.
func BoxOverlay(base image.Image, width, height int, gtBox, predBox models.BoundingBox, lineWidth float64, caption string) image.Image {
	var dc *gg.Context
	if base != nil {
		dc = gg.NewContextForImage(base)
	} else {
		dc = gg.NewContext(width, height)
		dc.SetColor(color.Black)
		dc.Clear()
	}

	drawBox(dc, gtBox, GroundTruthColor, lineWidth)
	drawBox(dc, predBox, PredictionColor, lineWidth)

	if caption != "" {
		dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: 12}))
		dc.SetColor(color.White)
		dc.DrawStringAnchored(caption, 4, 4, 0, 1)
	}
	return dc.Image()
}

// drawBox strokes the rectangle between the two inclusive corners
func drawBox(dc *gg.Context, box models.BoundingBox, c color.Color, width float64) {
	dc.SetColor(c)
	dc.SetLineWidth(width)
	dc.DrawRectangle(float64(box.XMin), float64(box.YMin),
		float64(box.XMax-box.XMin), float64(box.YMax-box.YMin))
	dc.Stroke()
}

// SaveIoU renders and writes the IoU overlay for a pair under name
func (v *Visualizer) SaveIoU(name string, gt, pred *models.BinaryMask) error {
	img, err := IoUOverlay(gt, pred)
	if err != nil {
		return err
	}
	return SaveImage(img, filepath.Join(v.iouDir, name))
}

// SaveBoxes renders and writes the bbox overlay for a pair under name. The
// original image is read from originalPath when it exists; otherwise the
// boxes are drawn on a black canvas the size of the masks.
func (v *Visualizer) SaveBoxes(name, originalPath string, width, height int, result models.PairResult) error {
	var base image.Image
	if originalPath != "" {
		img, err := imaging.Open(originalPath)
		if err != nil && !os.IsNotExist(errors.Cause(err)) {
			return errors.Wrapf(err, "failed to open original image %s", originalPath)
		}
		base = img
	}

	caption := ""
	if v.captions {
		caption = fmt.Sprintf("IoU bb %.3f", result.Metrics.IoUBBox)
	}
	img := BoxOverlay(base, width, height, result.GroundTruthBox, result.PredictionBox, v.lineWidth, caption)
	return SaveImage(img, filepath.Join(v.bboxDir, name))
}

// SaveImage writes img to filename, picking the encoder from its extension
func SaveImage(img image.Image, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	if err := imaging.Save(img, filename); err != nil {
		return errors.Wrapf(err, "failed to save %s", filename)
	}
	return nil
}
