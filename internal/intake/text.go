package intake

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// DecodeReader wraps r so its contents come out as UTF-8. The charset name
// is anything the WHATWG encoding index knows ("windows-1252", "latin1",
// "shift_jis", ...). An empty name returns r unchanged.
func DecodeReader(r io.Reader, charset string) (io.Reader, error) {
	if charset == "" || charset == "utf-8" {
		return r, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "intake: unsupported charset %q", charset)
	}
	return enc.NewDecoder().Reader(r), nil
}

// ReadTextFile reads a whole text file, converting from the given charset
// when one is set. Scanned-form exports from older systems are frequently
// windows-1252 rather than UTF-8.
func ReadTextFile(path, charset string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", eris.Wrapf(err, "intake: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	r, err := DecodeReader(f, charset)
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", eris.Wrapf(err, "intake: read %s", path)
	}
	return string(data), nil
}
