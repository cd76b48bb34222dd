package feeder

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"chainq/internal/failure"
)

// LoadCSV reads a CSV file whose first row names the fields.
func LoadCSV(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, failure.Wrap(failure.FeederLoad, path, err)
	}
	defer f.Close()

	records, err := ParseCSV(f)
	if err != nil {
		return nil, failure.Wrap(failure.FeederLoad, path, err)
	}
	return records, nil
}

// ParseCSV parses CSV data with a header row. Blank lines are skipped and
// short rows leave the missing fields empty.
func ParseCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("empty csv: missing header row")
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading csv header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
		if header[i] == "" {
			return nil, errors.Errorf("csv header column %d is empty", i+1)
		}
	}

	var records []Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading csv line %d", line)
		}
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		if len(row) > len(header) {
			return nil, errors.Errorf("csv line %d has %d fields, header has %d", line, len(row), len(header))
		}
		rec := make(Record, len(header))
		for i, name := range header {
			if i < len(row) {
				rec[name] = row[i]
			} else {
				rec[name] = ""
			}
		}
		records = append(records, rec)
	}
	return records, nil
}
