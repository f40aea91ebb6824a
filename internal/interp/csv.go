package interp

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/copyleftdev/stepwise/internal/optimization"
)

// ReadCSV reads a dataset from CSV text whose first two columns are x and
// y. Rows that do not hold two finite numbers, such as headers or blank
// lines, are skipped. Only read failures are errors.
func ReadCSV(r io.Reader) (Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var ds Dataset
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return ds, nil
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			continue
		}
		if err != nil {
			return nil, optimization.WrapError(optimization.KindValidation, err, "reading csv dataset")
		}
		if p, ok := parseRow(rec); ok {
			ds = append(ds, p)
		}
	}
}

func parseRow(rec []string) (Point, bool) {
	if len(rec) < 2 {
		return Point{}, false
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
	if err != nil || !optimization.IsFinite(x) {
		return Point{}, false
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
	if err != nil || !optimization.IsFinite(y) {
		return Point{}, false
	}
	return Point{X: x, Y: y}, true
}
