// Package maskio decodes mask images into binary masks and writes them back.
package maskio

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	// extra decoders picked up by image.Decode
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"maskeval/internal/models"
)

// ErrDecode is the cause of every DecodeError
var ErrDecode = errors.New("cannot decode image")

// DecodeError identifies the file that failed to decode
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s %s: %v", ErrDecode, e.Path, e.Err)
}

// Unwrap returns the underlying decoder error
func (e *DecodeError) Unwrap() error { return e.Err }

// Is lets errors.Is match ErrDecode
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// Loader decodes mask files and binarizes them
type Loader struct {
	// Threshold is the 8-bit gray level a pixel must strictly exceed to be
	// foreground. Zero means any nonzero pixel.
	Threshold uint8
}

// NewLoader returns a Loader with the given threshold
func NewLoader(threshold uint8) *Loader {
	return &Loader{Threshold: threshold}
}

// Load decodes the file at path and returns its binary mask
func (l *Loader) Load(path string) (*models.BinaryMask, error) {
	img, err := imaging.Open(path)
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return nil, errors.Wrapf(err, "mask file %s", path)
		}
		return nil, &DecodeError{Path: path, Err: err}
	}
	return Binarize(img, l.Threshold), nil
}

// Binarize converts img to grayscale and marks every pixel whose level is
// strictly greater than threshold as foreground. The comparison is done at
// 16-bit precision so that low label values in 16-bit images survive.
func Binarize(img image.Image, threshold uint8) *models.BinaryMask {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	cut := uint16(threshold) * 0x101

	pixels := make([]bool, width*height)
	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < height; y++ {
			off := src.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			row := src.Pix[off : off+width]
			for x, v := range row {
				pixels[y*width+x] = v > threshold
			}
		}
	default:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				g := color.Gray16Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
				pixels[y*width+x] = g.Y > cut
			}
		}
	}

	mask, _ := models.NewBinaryMaskFromPixels(width, height, pixels)
	return mask
}

// Remap renders mask as an 8-bit image with foreground 255 and background 0.
// It is a pure transform; nothing is written to disk.
func Remap(mask *models.BinaryMask) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, mask.Width(), mask.Height()))
	for i := 0; i < mask.Len(); i++ {
		if mask.Index(i) {
			img.Pix[i] = 255
		}
	}
	return img
}

// Save writes img to path, picking the encoder from the file extension
func Save(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}
	if err := imaging.Save(img, path); err != nil {
		return errors.Wrapf(err, "failed to save image %s", path)
	}
	return nil
}

// ListImages returns the sorted base names of files in dir whose extension is
// in extensions (case-insensitive) and whose name starts with prefix.
func ListImages(dir string, extensions []string, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read directory %s", dir)
	}

	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		allowed[strings.ToLower(ext)] = true
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !allowed[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		if prefix != "" && !strings.HasPrefix(name, prefix) {
			continue
		}
		names = append(names, name)
	}

	sort.Strings(names)
	return names, nil
}
