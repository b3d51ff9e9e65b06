// Package workspace removes the directories generated by earlier runs.
package workspace

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// Clean deletes every folder in folders under root. Missing folders are
// logged and skipped. It returns the removed paths and every removal error.
func Clean(root string, folders []string, logger zerolog.Logger) ([]string, error) {
	var (
		removed []string
		errs    error
	)
	for _, name := range folders {
		if !filepath.IsLocal(name) || filepath.Clean(name) == "." {
			errs = multierr.Append(errs, errors.Errorf("refusing to remove %q", name))
			continue
		}

		path := filepath.Join(root, name)
		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			logger.Info().Str("folder", path).Msg("folder does not exist")
			continue
		}
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "stat %s", path))
			continue
		}
		if !info.IsDir() {
			logger.Warn().Str("path", path).Msg("not a folder, left in place")
			continue
		}

		if err := os.RemoveAll(path); err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "remove %s", path))
			continue
		}
		logger.Info().Str("folder", path).Msg("folder removed")
		removed = append(removed, path)
	}
	return removed, errs
}
