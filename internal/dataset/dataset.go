// Package dataset loads the pre-split digit folds. Each row is 64 feature
// values followed by the class label, all non-negative integers.
package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"hypermlp/internal/model"
)

const columnsPerRow = model.FeatureCount + 1

var ErrMalformedRow = errors.New("malformed dataset row")

// LoadFold reads a fold from path and names it after the file.
func LoadFold(path string) (model.Fold, error) {
	file, err := os.Open(path)
	if err != nil {
		return model.Fold{}, errors.Wrapf(err, "open dataset %s", path)
	}
	defer file.Close()

	fold, err := ReadFold(file, filepath.Base(path))
	if err != nil {
		return model.Fold{}, errors.Wrapf(err, "load %s", path)
	}
	return fold, nil
}

// LoadFolds loads the two folds used for two-fold evaluation.
func LoadFolds(pathA, pathB string) ([2]model.Fold, error) {
	var folds [2]model.Fold
	for i, path := range []string{pathA, pathB} {
		fold, err := LoadFold(path)
		if err != nil {
			return folds, err
		}
		folds[i] = fold
	}
	return folds, nil
}

// ReadFold parses comma separated rows. Blank lines are skipped; any other
// malformed row fails with its line number.
func ReadFold(r io.Reader, name string) (model.Fold, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	fold := model.Fold{Name: name}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return model.Fold{}, errors.Wrap(err, "read dataset")
		}
		line, _ := reader.FieldPos(0)
		if len(record) != columnsPerRow {
			return model.Fold{}, errors.Wrapf(ErrMalformedRow, "line %d: %d columns, want %d", line, len(record), columnsPerRow)
		}

		sample := model.Sample{Features: make([]float64, model.FeatureCount)}
		for i, field := range record {
			value, err := strconv.Atoi(strings.TrimSpace(field))
			if err != nil || value < 0 {
				return model.Fold{}, errors.Wrapf(ErrMalformedRow, "line %d column %d: %q is not a non-negative integer", line, i+1, field)
			}
			if i < model.FeatureCount {
				sample.Features[i] = float64(value)
				continue
			}
			if value >= model.ClassCount {
				return model.Fold{}, errors.Wrapf(ErrMalformedRow, "line %d: label %d outside [0, %d]", line, value, model.ClassCount-1)
			}
			sample.Label = value
		}
		fold.Samples = append(fold.Samples, sample)
	}
	if len(fold.Samples) == 0 {
		return model.Fold{}, errors.Errorf("dataset %s has no samples", name)
	}
	return fold, nil
}
