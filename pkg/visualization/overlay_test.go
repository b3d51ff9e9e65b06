package visualization

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maskeval/internal/models"
	"maskeval/pkg/metrics"
)

// createTestMask creates a binary mask with the specified dimensions and pattern
func createTestMask(t *testing.T, width, height int, pattern func(x, y int) bool) *models.BinaryMask {
	t.Helper()
	pixels := make([]bool, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			pixels[y*width+x] = pattern(x, y)
		}
	}
	mask, err := models.NewBinaryMaskFromPixels(width, height, pixels)
	require.NoError(t, err)
	return mask
}

func rgbaAt(img image.Image, x, y int) color.RGBA {
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

func TestIoUOverlay(t *testing.T) {
	gt := createTestMask(t, 4, 1, func(x, y int) bool { return x <= 1 })
	pred := createTestMask(t, 4, 1, func(x, y int) bool { return x >= 1 && x <= 2 })

	img, err := IoUOverlay(gt, pred)
	require.NoError(t, err)

	tests := []struct {
		x    int
		want color.RGBA
	}{
		{0, color.RGBA{G: 255, A: 255}},         // gt only
		{1, color.RGBA{R: 255, G: 255, A: 255}}, // both
		{2, color.RGBA{G: 255, A: 255}},         // pred only
		{3, color.RGBA{A: 255}},                 // neither
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, img.RGBAAt(tt.x, 0), "pixel %d", tt.x)
	}
}

func TestIoUOverlayDimensionMismatch(t *testing.T) {
	a := createTestMask(t, 4, 4, func(x, y int) bool { return true })
	b := createTestMask(t, 3, 4, func(x, y int) bool { return true })
	_, err := IoUOverlay(a, b)
	assert.ErrorIs(t, err, metrics.ErrDimensionMismatch)
	assert.Contains(t, err.Error(), "4x4")
}

func TestBoxOverlayOnBlankCanvas(t *testing.T) {
	gtBox := models.BoundingBox{XMin: 2, YMin: 2, XMax: 7, YMax: 7}
	predBox := models.BoundingBox{XMin: 10, YMin: 10, XMax: 14, YMax: 14}

	img := BoxOverlay(nil, 20, 20, gtBox, predBox, 2, "")
	assert.Equal(t, image.Rect(0, 0, 20, 20), img.Bounds())

	edge := rgbaAt(img, 2, 4)
	assert.Greater(t, edge.G, uint8(200))
	assert.Less(t, edge.R, uint8(50))

	edge = rgbaAt(img, 10, 12)
	assert.Greater(t, edge.R, uint8(200))
	assert.Less(t, edge.G, uint8(50))

	inside := rgbaAt(img, 5, 5)
	assert.Equal(t, color.RGBA{A: 255}, inside)
}

func TestBoxOverlayKeepsBaseImage(t *testing.T) {
	base := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for i := range base.Pix {
		base.Pix[i] = 128
	}
	box := models.BoundingBox{XMin: 4, YMin: 4, XMax: 10, YMax: 10}

	img := BoxOverlay(base, 0, 0, box, box, 1, "IoU bb 1.000")
	assert.Equal(t, base.Bounds(), img.Bounds())
	assert.Equal(t, uint8(128), rgbaAt(img, 0, 15).B)
	// base is copied, not drawn on
	assert.Equal(t, uint8(128), base.Pix[(4*16+4)*4+1])
}

func TestVisualizerSave(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	dir := t.TempDir()
	v := NewVisualizer(filepath.Join(dir, "iou"), filepath.Join(dir, "bb"), 2, true)
	require.NoError(t, v.Prepare())

	gt := createTestMask(t, 8, 8, func(x, y int) bool { return x < 4 })
	pred := createTestMask(t, 8, 8, func(x, y int) bool { return y < 4 })
	require.NoError(t, v.SaveIoU("pred_001_mask.png", gt, pred))

	result := models.PairResult{
		Identifier:     "001",
		GroundTruthBox: models.BoundingBox{XMax: 3, YMax: 7},
		PredictionBox:  models.BoundingBox{XMax: 7, YMax: 3},
	}
	require.NoError(t, v.SaveBoxes("pred_001_mask.png", filepath.Join(dir, "missing.png"), 8, 8, result))

	original := filepath.Join(dir, "001.png")
	f, err := os.Create(original)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 8, 8))))
	require.NoError(t, f.Close())
	require.NoError(t, v.SaveBoxes("pred_001_orig.png", original, 8, 8, result))

	for _, name := range []string{"iou/pred_001_mask.png", "bb/pred_001_mask.png", "bb/pred_001_orig.png"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestSaveBoxesCorruptOriginal(t *testing.T) {
	dir := t.TempDir()
	original := filepath.Join(dir, "001.png")
	require.NoError(t, os.WriteFile(original, []byte("garbage"), 0644))

	v := NewVisualizer(filepath.Join(dir, "iou"), filepath.Join(dir, "bb"), 1, false)
	err := v.SaveBoxes("x.png", original, 4, 4, models.PairResult{})
	assert.Error(t, err)
}

func TestHistogram(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	dir := t.TempDir()
	write := func(name string, fg int) {
		img := image.NewGray(image.Rect(0, 0, 10, 10))
		for i := 0; i < fg; i++ {
			img.Pix[i] = 255
		}
		f, err := os.Create(filepath.Join(dir, name))
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, img))
		require.NoError(t, f.Close())
	}
	write("a.png", 10)
	write("b.png", 50)
	write("empty.png", 0)

	values, err := ForegroundFractions(dir, []string{".png"}, 0, 1e-4, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.5}, values)

	out := filepath.Join(t.TempDir(), "hist.png")
	n, err := Histogram(HistogramParams{
		Dir:         dir,
		Extensions:  []string{".png"},
		Bins:        5,
		MinFraction: 1e-4,
		Output:      out,
	}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, err = os.Stat(out)
	assert.NoError(t, err)
}

func TestSaveHistogramNoSamples(t *testing.T) {
	err := SaveHistogram(nil, 10, filepath.Join(t.TempDir(), "h.png"))
	assert.ErrorIs(t, err, ErrNoSamples)
}
