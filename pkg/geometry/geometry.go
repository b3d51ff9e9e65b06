// Package geometry derives box geometry from binary masks.
package geometry

import (
	"maskeval/internal/models"
)

// EmptyBox is returned for masks without any foreground pixel
var EmptyBox = models.BoundingBox{}

// BoundingBox returns the inclusive axis-aligned box around the foreground
// pixels of mask. A mask with no foreground yields EmptyBox. A single
// foreground row or column gives min == max on that axis.
func BoundingBox(mask *models.BinaryMask) models.BoundingBox {
	width, height := mask.Width(), mask.Height()

	yMin, yMax := -1, -1
	xMin, xMax := width, -1
	for y := 0; y < height; y++ {
		rowHit := false
		for x := 0; x < width; x++ {
			if !mask.At(x, y) {
				continue
			}
			rowHit = true
			if x < xMin {
				xMin = x
			}
			if x > xMax {
				xMax = x
			}
		}
		if rowHit {
			if yMin < 0 {
				yMin = y
			}
			yMax = y
		}
	}

	if yMin < 0 {
		return EmptyBox
	}
	return models.BoundingBox{XMin: xMin, YMin: yMin, XMax: xMax, YMax: yMax}
}

// Area returns (XMax-XMin)*(YMax-YMin). Boxes spanning a single row or column
// have zero area.
func Area(box models.BoundingBox) int {
	return (box.XMax - box.XMin) * (box.YMax - box.YMin)
}

// ForegroundFraction returns the share of foreground pixels in mask, or 0 for
// a mask without pixels
func ForegroundFraction(mask *models.BinaryMask) float64 {
	if mask.Len() == 0 {
		return 0
	}
	return float64(mask.Count()) / float64(mask.Len())
}
