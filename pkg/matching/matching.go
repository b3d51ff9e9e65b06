// Package matching pairs predicted masks with ground-truth masks through the
// identifier embedded in their filenames.
//
// Prediction files follow <prefix>_<id>_<suffix>.<ext>; ground-truth files
// follow <id>.<ext>. Pairs are joined by identifier, never by position, so a
// different lexicographic order of the two naming schemes cannot mismatch them.
package matching

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"maskeval/internal/models"
)

var (
	// ErrNamingConvention is the cause of every NamingConventionError
	ErrNamingConvention = errors.New("filename does not follow the naming convention")

	// ErrDuplicateIdentifier is returned when two files on the same side share an identifier
	ErrDuplicateIdentifier = errors.New("duplicate identifier")
)

// NamingConventionError identifies the file whose name could not be parsed
type NamingConventionError struct {
	Filename string
	Reason   string
}

func (e *NamingConventionError) Error() string {
	return fmt.Sprintf("%s: %q: %s", ErrNamingConvention, e.Filename, e.Reason)
}

// Unwrap lets errors.Is match ErrNamingConvention
func (e *NamingConventionError) Unwrap() error { return ErrNamingConvention }

// ParsePredictionID extracts the identifier of a predicted mask: the second
// underscore-delimited token of the base name.
func ParsePredictionID(filename string) (models.Identifier, error) {
	base := filepath.Base(filename)
	tokens := strings.Split(base, "_")
	if len(tokens) < 2 {
		return "", &NamingConventionError{Filename: filename, Reason: "expected <prefix>_<id>_<suffix>, found no underscore"}
	}
	id := tokens[1]
	// a two-token name carries the extension on the id token
	if len(tokens) == 2 {
		id = strings.TrimSuffix(id, filepath.Ext(id))
	}
	if id == "" {
		return "", &NamingConventionError{Filename: filename, Reason: "identifier token is empty"}
	}
	return models.Identifier(id), nil
}

// ParseGroundTruthID extracts the identifier of a ground-truth mask: the base
// name up to the first dot.
func ParseGroundTruthID(filename string) (models.Identifier, error) {
	base := filepath.Base(filename)
	stem, _, _ := strings.Cut(base, ".")
	if stem == "" {
		return "", &NamingConventionError{Filename: filename, Reason: "expected <id>.<ext>, stem is empty"}
	}
	return models.Identifier(stem), nil
}

// FilterGroundTruth keeps the ground-truth files whose identifier appears
// among the prediction identifiers. The result is sorted lexicographically.
func FilterGroundTruth(predictions, groundTruth []string) ([]string, error) {
	wanted := make(map[models.Identifier]struct{}, len(predictions))
	for _, name := range predictions {
		id, err := ParsePredictionID(name)
		if err != nil {
			return nil, err
		}
		wanted[id] = struct{}{}
	}

	kept := make([]string, 0, len(groundTruth))
	for _, name := range groundTruth {
		id, err := ParseGroundTruthID(name)
		if err != nil {
			return nil, err
		}
		if _, ok := wanted[id]; ok {
			kept = append(kept, name)
		}
	}
	sort.Strings(kept)
	return kept, nil
}

// Pair is one prediction joined with its ground truth
type Pair struct {
	ID          models.Identifier
	Prediction  string
	GroundTruth string
}

// Alignment is the result of joining both file sets by identifier
type Alignment struct {
	// Pairs are sorted by identifier
	Pairs []Pair

	// Unmatched are predictions without a ground-truth file, sorted
	Unmatched []string

	// Dropped are ground-truth files without a prediction, sorted
	Dropped []string
}

// Align joins predictions and ground truth by identifier
func Align(predictions, groundTruth []string) (*Alignment, error) {
	predByID, err := index(predictions, ParsePredictionID)
	if err != nil {
		return nil, errors.Wrap(err, "indexing predictions")
	}
	gtByID, err := index(groundTruth, ParseGroundTruthID)
	if err != nil {
		return nil, errors.Wrap(err, "indexing ground truth")
	}

	ids := lo.Keys(predByID)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	alignment := &Alignment{}
	for _, id := range ids {
		gt, ok := gtByID[id]
		if !ok {
			alignment.Unmatched = append(alignment.Unmatched, predByID[id])
			continue
		}
		alignment.Pairs = append(alignment.Pairs, Pair{ID: id, Prediction: predByID[id], GroundTruth: gt})
	}

	for id, gt := range gtByID {
		if _, ok := predByID[id]; !ok {
			alignment.Dropped = append(alignment.Dropped, gt)
		}
	}
	sort.Strings(alignment.Unmatched)
	sort.Strings(alignment.Dropped)

	return alignment, nil
}

func index(names []string, parse func(string) (models.Identifier, error)) (map[models.Identifier]string, error) {
	byID := make(map[models.Identifier]string, len(names))
	for _, name := range names {
		id, err := parse(name)
		if err != nil {
			return nil, err
		}
		if prev, ok := byID[id]; ok {
			return nil, errors.Wrapf(ErrDuplicateIdentifier, "%q shared by %q and %q", id, prev, name)
		}
		byID[id] = name
	}
	return byID, nil
}
