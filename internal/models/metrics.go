package models

// MetricRecord holds the agreement scores of one prediction/ground-truth pair
type MetricRecord struct {
	// IoUPixel is |gt AND pred| / |gt OR pred|
	IoUPixel float64 `json:"iouPixel" yaml:"iouPixel"`

	// Dice is the binary F1 score over the foreground class
	Dice float64 `json:"dice" yaml:"dice"`

	// IoUBBox is the intersection over union of the two bounding boxes
	IoUBBox float64 `json:"iouBBox" yaml:"iouBBox"`

	// Precision is TP / (TP + FP) and Recall is TP / (TP + FN), both 1 when
	// their denominator is zero
	Precision float64 `json:"precision" yaml:"precision"`
	Recall    float64 `json:"recall" yaml:"recall"`

	// Degenerate geometry flags. None of them is an error; they mark pairs
	// whose scores came from a documented empty-case policy.
	EmptyGroundTruth bool `json:"emptyGroundTruth,omitempty" yaml:"emptyGroundTruth,omitempty"`
	EmptyPrediction  bool `json:"emptyPrediction,omitempty" yaml:"emptyPrediction,omitempty"`
	EmptyUnion       bool `json:"emptyUnion,omitempty" yaml:"emptyUnion,omitempty"`
}

// Degenerate reports whether any empty-case policy was applied
func (r MetricRecord) Degenerate() bool {
	return r.EmptyGroundTruth || r.EmptyPrediction || r.EmptyUnion
}

// PairResult is a MetricRecord together with the files it was computed from
type PairResult struct {
	Identifier      Identifier   `json:"identifier" yaml:"identifier"`
	PredictionFile  string       `json:"predictionFile" yaml:"predictionFile"`
	GroundTruthFile string       `json:"groundTruthFile" yaml:"groundTruthFile"`
	GroundTruthBox  BoundingBox  `json:"groundTruthBox" yaml:"groundTruthBox"`
	PredictionBox   BoundingBox  `json:"predictionBox" yaml:"predictionBox"`
	Metrics         MetricRecord `json:"metrics" yaml:"metrics"`
}

// AggregateReport holds the averages over all evaluated pairs
type AggregateReport struct {
	MeanIoUPixel float64 `json:"meanIouPixel" yaml:"meanIouPixel"`
	MeanDice     float64 `json:"meanDice" yaml:"meanDice"`
	MeanIoUBBox  float64 `json:"meanIouBBox" yaml:"meanIouBBox"`

	// Count is the number of pairs the means were taken over
	Count int `json:"count" yaml:"count"`
}

// SkippedPair records a pair dropped under the skip-and-continue policy
type SkippedPair struct {
	Identifier Identifier `json:"identifier" yaml:"identifier"`
	Reason     string     `json:"reason" yaml:"reason"`
}
