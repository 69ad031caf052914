package io

import (
	"fmt"
	"os"

	"github.com/matzehuels/metalroute/pkg/errors"
	"github.com/matzehuels/metalroute/pkg/resolution"
)

// ExportResolution writes res as JSON to the file at path.
func ExportResolution(res *resolution.Resolution, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := res.WriteJSON(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ImportResolution reads a resolution previously written by
// [ExportResolution] and checks its references.
func ImportResolution(path string) (*resolution.Resolution, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "resolution %s", path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	res, err := resolution.ReadJSON(f)
	if err != nil {
		return nil, err
	}
	if err := res.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}
