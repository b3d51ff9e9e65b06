package models

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrPixelCount is returned when a pixel slice does not fit the mask size
var ErrPixelCount = errors.New("pixel count does not match mask size")

// BinaryMask represents a decoded, binarized segmentation mask
type BinaryMask struct {
	// pixels holds foreground flags in row-major order
	pixels []bool

	// width and height are the dimensions of the source image
	width  int
	height int
}

// NewBinaryMask creates an all-background mask of the given size
func NewBinaryMask(width, height int) *BinaryMask {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &BinaryMask{
		pixels: make([]bool, width*height),
		width:  width,
		height: height,
	}
}

// NewBinaryMaskFromPixels copies pixels into a new mask. The slice must hold
// exactly width*height entries in row-major order.
func NewBinaryMaskFromPixels(width, height int, pixels []bool) (*BinaryMask, error) {
	if width < 0 || height < 0 || len(pixels) != width*height {
		return nil, errors.Wrapf(ErrPixelCount, "mask %dx%d needs %d pixels, got %d", width, height, width*height, len(pixels))
	}
	data := make([]bool, len(pixels))
	copy(data, pixels)
	return &BinaryMask{pixels: data, width: width, height: height}, nil
}

// Width returns the number of columns
func (m *BinaryMask) Width() int { return m.width }

// Height returns the number of rows
func (m *BinaryMask) Height() int { return m.height }

// Len returns the total number of pixels
func (m *BinaryMask) Len() int { return len(m.pixels) }

// At reports whether the pixel at column x, row y is foreground.
// Out-of-range coordinates are background.
func (m *BinaryMask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return false
	}
	return m.pixels[y*m.width+x]
}

// Index reports whether the i-th pixel in row-major order is foreground
func (m *BinaryMask) Index(i int) bool {
	return m.pixels[i]
}

// Count returns the number of foreground pixels
func (m *BinaryMask) Count() int {
	n := 0
	for _, p := range m.pixels {
		if p {
			n++
		}
	}
	return n
}

// SameSize reports whether both masks have identical dimensions
func (m *BinaryMask) SameSize(other *BinaryMask) bool {
	return m.width == other.width && m.height == other.height
}

// BoundingBox is an axis-aligned box with inclusive pixel coordinates.
// The zero value is the sentinel returned for masks without foreground.
type BoundingBox struct {
	XMin int `json:"xMin" yaml:"xMin"`
	YMin int `json:"yMin" yaml:"yMin"`
	XMax int `json:"xMax" yaml:"xMax"`
	YMax int `json:"yMax" yaml:"yMax"`
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("(%d, %d, %d, %d)", b.XMin, b.YMin, b.XMax, b.YMax)
}

// Identifier is the key extracted from a mask filename and used to pair
// predictions with ground truth
type Identifier string

func (id Identifier) String() string { return string(id) }
