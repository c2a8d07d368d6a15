package intake

import (
	"sort"
	"strings"

	"github.com/docufill/fieldcalc/internal/model"
)

// ExtractedValue is one (field, value) pair pulled out of a document.
type ExtractedValue struct {
	FieldKey string  `json:"field_key"`
	Value    float64 `json:"value"`
	Line     string  `json:"line,omitempty"` // source line, kept for audit
}

// Result is what intake hands to a session: the values it matched and the
// lines that looked like data but no field claimed.
type Result struct {
	Values    []ExtractedValue `json:"values"`
	Unmatched []string         `json:"unmatched,omitempty"`
}

type hint struct {
	keyword string
	key     string
}

// Mapper matches extracted document text against a schema's keyword hints.
// Matching is case-insensitive and prefers longer keywords, so "tax rate"
// claims its line before "tax" can.
type Mapper struct {
	hints []hint
}

// NewMapper builds a mapper from the schema's field registry. Fields
// without keywords fall back to their key as the sole hint.
func NewMapper(reg *model.FieldRegistry) *Mapper {
	m := &Mapper{}
	for _, f := range reg.Fields {
		keywords := f.Keywords
		if len(keywords) == 0 {
			keywords = []string{strings.ToLower(strings.ReplaceAll(f.Key, "_", " "))}
		}
		for _, kw := range keywords {
			if kw == "" {
				continue
			}
			m.hints = append(m.hints, hint{keyword: kw, key: f.Key})
		}
	}
	sort.SliceStable(m.hints, func(i, j int) bool {
		return len(m.hints[i].keyword) > len(m.hints[j].keyword)
	})
	return m
}

// MapText walks document text line by line, matching each line against the
// keyword hints. First occurrence wins: once a field has a value, later
// lines mentioning it are left alone. Lines that contain a number but match
// no field are reported as unmatched for review.
func (m *Mapper) MapText(text string) *Result {
	res := &Result{}
	seen := make(map[string]struct{})

	for _, rawLine := range strings.Split(text, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}

		ev, ok := m.MapLine(line)
		if !ok {
			if _, numeric := ParseNumber(line); numeric {
				res.Unmatched = append(res.Unmatched, line)
			}
			continue
		}
		if _, dup := seen[ev.FieldKey]; dup {
			continue
		}
		seen[ev.FieldKey] = struct{}{}
		res.Values = append(res.Values, ev)
	}
	return res
}

// MapLine matches a single line: the longest keyword found in the line
// claims it, and the value is the first number to the right of the keyword.
func (m *Mapper) MapLine(line string) (ExtractedValue, bool) {
	lower := strings.ToLower(line)
	for _, h := range m.hints {
		idx := strings.Index(lower, h.keyword)
		if idx < 0 {
			continue
		}
		rest := line[idx+len(h.keyword):]
		v, ok := ParseNumber(rest)
		if !ok {
			continue
		}
		return ExtractedValue{FieldKey: h.key, Value: v, Line: line}, true
	}
	return ExtractedValue{}, false
}

// MapRows matches tabular data, one row at a time: the first cell that
// matches a keyword names the field, and the first parseable number in the
// cells to its right supplies the value.
func (m *Mapper) MapRows(rows [][]string) *Result {
	res := &Result{}
	seen := make(map[string]struct{})

	for _, row := range rows {
		key, value, line, ok := m.mapRow(row)
		if !ok {
			if line != "" {
				res.Unmatched = append(res.Unmatched, line)
			}
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		res.Values = append(res.Values, ExtractedValue{FieldKey: key, Value: value, Line: line})
	}
	return res
}

func (m *Mapper) mapRow(row []string) (key string, value float64, line string, ok bool) {
	for i, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		lower := strings.ToLower(cell)
		for _, h := range m.hints {
			if !strings.Contains(lower, h.keyword) {
				continue
			}
			for _, rest := range row[i+1:] {
				if v, numeric := ParseNumber(rest); numeric {
					return h.key, v, strings.Join(row, " | "), true
				}
			}
		}
		// A row with numbers but no matching label is worth surfacing.
		for _, rest := range row[i:] {
			if _, numeric := ParseNumber(rest); numeric {
				return "", 0, strings.Join(row, " | "), false
			}
		}
		return "", 0, "", false
	}
	return "", 0, "", false
}
