// Package metrics computes agreement scores between a ground-truth mask and a
// predicted mask: pixel IoU, Dice/F1 and bounding-box IoU.
package metrics

import (
	"github.com/pkg/errors"

	"maskeval/internal/models"
	"maskeval/pkg/geometry"
)

// Degenerate-case policies. Each one is the score given when the regular
// formula divides by zero.
const (
	// EmptyUnionIoU is the pixel IoU of two all-background masks
	EmptyUnionIoU = 1.0

	// EmptyDice is the Dice score when neither mask has foreground
	EmptyDice = 1.0

	// EmptyUnionBoxIoU is the bbox IoU when the union area is zero and the
	// active BoxPolicy accepts the boxes as agreeing
	EmptyUnionBoxIoU = 1.0

	// DisjointBoxIoU is the bbox IoU when the intersection rectangle is inverted
	DisjointBoxIoU = 0.0
)

// ErrDimensionMismatch is returned when the two masks differ in size
var ErrDimensionMismatch = errors.New("mask dimensions differ")

// BoxPolicy decides the bbox IoU when both boxes have zero union area
type BoxPolicy int

const (
	// StrictBoxPolicy scores a zero union as EmptyUnionBoxIoU only when the
	// boxes are identical, and DisjointBoxIoU otherwise
	StrictBoxPolicy BoxPolicy = iota

	// ReferenceBoxPolicy always scores a zero union as EmptyUnionBoxIoU, even
	// for degenerate boxes that only touch
	ReferenceBoxPolicy
)

func (p BoxPolicy) String() string {
	switch p {
	case StrictBoxPolicy:
		return "strict"
	case ReferenceBoxPolicy:
		return "reference"
	default:
		return "unknown"
	}
}

// ParseBoxPolicy maps a config name to a BoxPolicy
func ParseBoxPolicy(name string) (BoxPolicy, error) {
	switch name {
	case "", "strict":
		return StrictBoxPolicy, nil
	case "reference":
		return ReferenceBoxPolicy, nil
	default:
		return StrictBoxPolicy, errors.Errorf("unknown box policy %q", name)
	}
}

// Confusion holds the pixel confusion counts with foreground as positive class
type Confusion struct {
	TruePositives  int
	FalsePositives int
	FalseNegatives int
	TrueNegatives  int
}

// NewConfusion counts pixel agreement between gt and pred
func NewConfusion(gt, pred *models.BinaryMask) (Confusion, error) {
	if !gt.SameSize(pred) {
		return Confusion{}, errors.Wrapf(ErrDimensionMismatch, "ground truth %dx%d, prediction %dx%d",
			gt.Width(), gt.Height(), pred.Width(), pred.Height())
	}

	var c Confusion
	for i := 0; i < gt.Len(); i++ {
		g, p := gt.Index(i), pred.Index(i)
		switch {
		case g && p:
			c.TruePositives++
		case !g && p:
			c.FalsePositives++
		case g && !p:
			c.FalseNegatives++
		default:
			c.TrueNegatives++
		}
	}
	return c, nil
}

// Intersection is the number of pixels foreground in both masks
func (c Confusion) Intersection() int { return c.TruePositives }

// Union is the number of pixels foreground in either mask
func (c Confusion) Union() int { return c.TruePositives + c.FalsePositives + c.FalseNegatives }

// IoU returns Intersection/Union, or EmptyUnionIoU when the union is empty
func (c Confusion) IoU() float64 {
	union := c.Union()
	if union == 0 {
		return EmptyUnionIoU
	}
	return float64(c.Intersection()) / float64(union)
}

// Dice returns 2TP / (2TP + FP + FN), or EmptyDice when the denominator is zero
func (c Confusion) Dice() float64 {
	denom := 2*c.TruePositives + c.FalsePositives + c.FalseNegatives
	if denom == 0 {
		return EmptyDice
	}
	return float64(2*c.TruePositives) / float64(denom)
}

// Precision returns TP / (TP + FP), or 1 when nothing was predicted
func (c Confusion) Precision() float64 {
	if c.TruePositives+c.FalsePositives == 0 {
		return 1
	}
	return float64(c.TruePositives) / float64(c.TruePositives+c.FalsePositives)
}

// Recall returns TP / (TP + FN), or 1 when the ground truth is empty
func (c Confusion) Recall() float64 {
	if c.TruePositives+c.FalseNegatives == 0 {
		return 1
	}
	return float64(c.TruePositives) / float64(c.TruePositives+c.FalseNegatives)
}

// PixelIoU returns |gt AND pred| / |gt OR pred|
func PixelIoU(gt, pred *models.BinaryMask) (float64, error) {
	c, err := NewConfusion(gt, pred)
	if err != nil {
		return 0, err
	}
	return c.IoU(), nil
}

// Dice returns the binary F1 score of pred against gt over all pixels
func Dice(gt, pred *models.BinaryMask) (float64, error) {
	c, err := NewConfusion(gt, pred)
	if err != nil {
		return 0, err
	}
	return c.Dice(), nil
}

// BoxIoU returns the intersection over union of two inclusive boxes, using
// geometry.Area for both box areas and the intersection
func BoxIoU(gt, pred models.BoundingBox, policy BoxPolicy) float64 {
	xLeft := max(gt.XMin, pred.XMin)
	yTop := max(gt.YMin, pred.YMin)
	xRight := min(gt.XMax, pred.XMax)
	yBottom := min(gt.YMax, pred.YMax)

	if xRight < xLeft || yBottom < yTop {
		return DisjointBoxIoU
	}

	intersection := (xRight - xLeft) * (yBottom - yTop)
	union := geometry.Area(gt) + geometry.Area(pred) - intersection
	if union == 0 {
		if policy == StrictBoxPolicy && gt != pred {
			return DisjointBoxIoU
		}
		return EmptyUnionBoxIoU
	}
	return float64(intersection) / float64(union)
}

// Comparison is the full result of comparing one pair of masks
type Comparison struct {
	Record         models.MetricRecord
	GroundTruthBox models.BoundingBox
	PredictionBox  models.BoundingBox
	Confusion      Confusion
}

// Compare computes every metric for one pair. Neither mask is modified.
func Compare(gt, pred *models.BinaryMask, policy BoxPolicy) (Comparison, error) {
	c, err := NewConfusion(gt, pred)
	if err != nil {
		return Comparison{}, err
	}

	gtBox := geometry.BoundingBox(gt)
	predBox := geometry.BoundingBox(pred)

	record := models.MetricRecord{
		IoUPixel:         c.IoU(),
		Dice:             c.Dice(),
		IoUBBox:          BoxIoU(gtBox, predBox, policy),
		Precision:        c.Precision(),
		Recall:           c.Recall(),
		EmptyGroundTruth: c.TruePositives+c.FalseNegatives == 0,
		EmptyPrediction:  c.TruePositives+c.FalsePositives == 0,
		EmptyUnion:       c.Union() == 0,
	}
	// an empty mask has the zero box, which would otherwise score 1 against
	// a prediction of the single pixel (0, 0)
	if policy == StrictBoxPolicy && record.EmptyGroundTruth != record.EmptyPrediction {
		record.IoUBBox = DisjointBoxIoU
	}

	return Comparison{
		Record:         record,
		GroundTruthBox: gtBox,
		PredictionBox:  predBox,
		Confusion:      c,
	}, nil
}
