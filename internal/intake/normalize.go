package intake

import "strconv"

// ParseNumber extracts the first numeric amount from a text fragment, the
// way values appear on scanned forms: currency symbols and thousands
// separators are ignored, accounting parentheses mean negative, and a
// percent suffix scales by 1/100 ("8%" -> 0.08). Returns false when the
// fragment holds no number.
func ParseNumber(s string) (float64, bool) {
	start := -1
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			start = i
			break
		}
	}
	if start == -1 {
		return 0, false
	}

	// Left of the digits: a sign or an opening paren, with currency
	// markers and spacing in between. Non-ASCII bytes cover symbols
	// like the euro or pound sign.
	negative := false
	parenOpen := false
left:
	for i := start - 1; i >= 0; i-- {
		switch c := s[i]; {
		case c == ' ' || c == '\t' || c == '$' || c >= 0x80:
			// skip
		case c == '-':
			negative = true
		case c == '(':
			parenOpen = true
			break left
		default:
			break left
		}
	}

	// The digits themselves, with thousands separators dropped and at
	// most one decimal point.
	end := start
	sawDot := false
	var digits []byte
scan:
	for end < len(s) {
		switch c := s[end]; {
		case c >= '0' && c <= '9':
			digits = append(digits, c)
		case c == ',':
			// thousands separator
		case c == '.' && !sawDot:
			sawDot = true
			digits = append(digits, '.')
		default:
			break scan
		}
		end++
	}

	v, err := strconv.ParseFloat(string(digits), 64)
	if err != nil {
		return 0, false
	}

	// Right of the digits: a percent suffix and the closing paren.
	percent := false
	parenClosed := false
right:
	for i := end; i < len(s); i++ {
		switch c := s[i]; {
		case c == ' ' || c == '\t':
			// skip
		case c == '%' && !percent:
			percent = true
		case c == ')' && parenOpen:
			parenClosed = true
			break right
		default:
			break right
		}
	}

	if percent {
		v /= 100
	}
	if negative || (parenOpen && parenClosed) {
		v = -v
	}
	return v, true
}
