package maskio

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ConvertedPrefix is prepended to the name of every converted mask
const ConvertedPrefix = "modified_"

// ConvertDir remaps every mask in dir so that any nonzero pixel becomes 255
// and writes the result next to the source as ConvertedPrefix+name. Files that
// already carry the prefix are left alone. It returns the written file names.
func ConvertDir(dir string, extensions []string, logger zerolog.Logger) ([]string, error) {
	names, err := ListImages(dir, extensions, "")
	if err != nil {
		return nil, err
	}

	loader := NewLoader(0)
	var written []string
	for _, name := range names {
		if strings.HasPrefix(name, ConvertedPrefix) {
			continue
		}

		mask, err := loader.Load(filepath.Join(dir, name))
		if err != nil {
			return written, errors.Wrapf(err, "converting %s", name)
		}

		outName := ConvertedPrefix + name
		if err := Save(Remap(mask), filepath.Join(dir, outName)); err != nil {
			return written, err
		}
		logger.Info().Str("source", name).Str("output", outName).Msg("mask converted")
		written = append(written, outName)
	}

	return written, nil
}
