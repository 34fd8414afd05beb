package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func row(label int, fill int) string {
	fields := make([]string, 0, columnsPerRow)
	for i := 0; i < columnsPerRow-1; i++ {
		fields = append(fields, fmt.Sprint(fill))
	}
	fields = append(fields, fmt.Sprint(label))
	return strings.Join(fields, ",")
}

func TestReadFoldParsesRows(t *testing.T) {
	input := row(3, 1) + "\n\n" + row(9, 16) + "\n"
	fold, err := ReadFold(strings.NewReader(input), "fold-a")
	if err != nil {
		t.Fatalf("read fold: %v", err)
	}
	if fold.Name != "fold-a" || fold.Len() != 2 {
		t.Fatalf("unexpected fold: name=%s len=%d", fold.Name, fold.Len())
	}
	if fold.Samples[0].Label != 3 || fold.Samples[1].Label != 9 {
		t.Fatalf("unexpected labels: %d %d", fold.Samples[0].Label, fold.Samples[1].Label)
	}
	if len(fold.Samples[1].Features) != 64 || fold.Samples[1].Features[63] != 16 {
		t.Fatalf("unexpected features: %v", fold.Samples[1].Features)
	}
	fold.Samples[0].Features[0] = 99
	if fold.Samples[1].Features[0] != 16 {
		t.Fatal("samples share feature storage")
	}
}

func TestReadFoldRejectsMalformedRows(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "short row", input: row(1, 0) + "\n1,2,3\n", want: "line 2"},
		{name: "negative value", input: strings.Replace(row(1, 0), "0", "-1", 1), want: "line 1 column 1"},
		{name: "not a number", input: strings.Replace(row(1, 0), "0", "x", 1), want: "not a non-negative integer"},
		{name: "label out of range", input: row(10, 0), want: "label 10"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadFold(strings.NewReader(tc.input), "bad")
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.Cause(err) != ErrMalformedRow {
				t.Fatalf("expected ErrMalformedRow cause, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}

	if _, err := ReadFold(strings.NewReader("\n\n"), "empty"); err == nil {
		t.Fatal("expected error for empty fold")
	}
}

func TestLoadFolds(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "cw2DataSet1.csv")
	pathB := filepath.Join(dir, "cw2DataSet2.csv")
	if err := os.WriteFile(pathA, []byte(row(0, 2)+"\n"+row(1, 3)+"\n"), 0o644); err != nil {
		t.Fatalf("write fold a: %v", err)
	}
	if err := os.WriteFile(pathB, []byte(row(2, 4)+"\n"), 0o644); err != nil {
		t.Fatalf("write fold b: %v", err)
	}

	folds, err := LoadFolds(pathA, pathB)
	if err != nil {
		t.Fatalf("load folds: %v", err)
	}
	if folds[0].Name != "cw2DataSet1.csv" || folds[0].Len() != 2 || folds[1].Len() != 1 {
		t.Fatalf("unexpected folds: %s/%d %s/%d", folds[0].Name, folds[0].Len(), folds[1].Name, folds[1].Len())
	}

	if _, err := LoadFolds(pathA, filepath.Join(dir, "missing.csv")); err == nil {
		t.Fatal("expected missing file error")
	}
}
