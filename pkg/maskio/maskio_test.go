package maskio

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
)

// createTestImage creates a grayscale test image with the specified dimensions and pattern
func createTestImage(width, height int, pattern func(x, y int) uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: pattern(x, y)})
		}
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestBinarizeThreshold(t *testing.T) {
	// values 0, 1, 127, 128, 255 across the first row
	values := []uint8{0, 1, 127, 128, 255}
	img := createTestImage(len(values), 1, func(x, y int) uint8 { return values[x] })

	tests := []struct {
		name      string
		threshold uint8
		want      []bool
	}{
		{name: "any nonzero", threshold: 0, want: []bool{false, true, true, true, true}},
		{name: "mid gray cut", threshold: 127, want: []bool{false, false, false, true, true}},
		{name: "nothing exceeds max", threshold: 255, want: []bool{false, false, false, false, false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mask := Binarize(img, tt.threshold)
			require.Equal(t, len(values), mask.Width())
			require.Equal(t, 1, mask.Height())
			for x, want := range tt.want {
				assert.Equal(t, want, mask.At(x, 0), "pixel %d", x)
			}
		})
	}
}

func TestBinarizeNonGrayImages(t *testing.T) {
	t.Run("rgba", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(0, 0, 2, 1))
		img.Set(1, 0, color.RGBA{R: 200, G: 10, B: 10, A: 255})
		mask := Binarize(img, 0)
		assert.False(t, mask.At(0, 0))
		assert.True(t, mask.At(1, 0))
	})

	t.Run("gray16 low label", func(t *testing.T) {
		img := image.NewGray16(image.Rect(0, 0, 2, 1))
		img.SetGray16(1, 0, color.Gray16{Y: 1})
		mask := Binarize(img, 0)
		assert.False(t, mask.At(0, 0))
		assert.True(t, mask.At(1, 0))
	})

	t.Run("offset bounds", func(t *testing.T) {
		img := image.NewGray(image.Rect(0, 0, 4, 4)).SubImage(image.Rect(2, 2, 4, 4)).(*image.Gray)
		img.SetGray(3, 3, color.Gray{Y: 9})
		mask := Binarize(img, 0)
		assert.Equal(t, 2, mask.Width())
		assert.True(t, mask.At(1, 1))
		assert.Equal(t, 1, mask.Count())
	})
}

func TestLoaderLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "001.png")
	writePNG(t, path, createTestImage(6, 4, func(x, y int) uint8 {
		if x >= 2 && y >= 1 {
			return 1
		}
		return 0
	}))

	mask, err := NewLoader(0).Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6, mask.Width())
	assert.Equal(t, 4, mask.Height())
	assert.Equal(t, 12, mask.Count())
}

func TestLoaderErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewLoader(0).Load(filepath.Join(dir, "missing.png"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	corrupt := filepath.Join(dir, "corrupt.png")
	require.NoError(t, os.WriteFile(corrupt, []byte("not an image"), 0644))
	_, err = NewLoader(0).Load(corrupt)
	assert.ErrorIs(t, err, ErrDecode)

	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, corrupt, de.Path)
}

func TestRemap(t *testing.T) {
	mask := Binarize(createTestImage(3, 1, func(x, y int) uint8 { return uint8(x) }), 0)
	img := Remap(mask)
	assert.Equal(t, []uint8{0, 255, 255}, img.Pix)
	// the source mask is untouched
	assert.Equal(t, 2, mask.Count())
}

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.PNG", "notes.txt", "modified_c.png", "d.jpg"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0755))

	names, err := ListImages(dir, []string{".png", ".jpg"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.PNG", "b.png", "d.jpg", "modified_c.png"}, names)

	names, err = ListImages(dir, []string{".png"}, "modified")
	require.NoError(t, err)
	assert.Equal(t, []string{"modified_c.png"}, names)

	_, err = ListImages(filepath.Join(dir, "absent"), []string{".png"}, "")
	assert.Error(t, err)
}

func TestConvertDir(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "000001_label.png"), createTestImage(4, 4, func(x, y int) uint8 {
		if x == y {
			return 1
		}
		return 0
	}))
	writePNG(t, filepath.Join(dir, "modified_old.png"), createTestImage(2, 2, func(x, y int) uint8 { return 0 }))

	written, err := ConvertDir(dir, []string{".png"}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"modified_000001_label.png"}, written)

	f, err := os.Open(filepath.Join(dir, "modified_000001_label.png"))
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)

	gray := color.GrayModel.Convert(img.At(2, 2)).(color.Gray)
	assert.Equal(t, uint8(255), gray.Y)
	gray = color.GrayModel.Convert(img.At(1, 2)).(color.Gray)
	assert.Equal(t, uint8(0), gray.Y)
}
