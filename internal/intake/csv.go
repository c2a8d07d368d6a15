package intake

import (
	"encoding/csv"
	"os"

	"github.com/rotisserie/eris"
)

// ReadCSV reads a CSV file into string rows. Ragged rows are allowed since
// scanned form exports rarely keep a uniform column count.
func ReadCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "intake: open csv %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "intake: read csv %s", path)
	}
	return rows, nil
}
