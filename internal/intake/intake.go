// Package intake turns source documents (scanned PDFs, spreadsheets, plain
// text exports) into numeric field values keyed by schema field. Extraction
// is keyword-driven: each schema field's keywords are matched against
// document lines, and the number nearest the match is parsed. Lines that
// look numeric but match no field are reported as unmatched for review.
package intake

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/docufill/fieldcalc/internal/model"
	"github.com/docufill/fieldcalc/internal/session"
)

// Options configures an Intake pipeline.
type Options struct {
	PDFBin string // pdftotext binary, default "pdftotext"
	HTTP   HTTPOptions
	FTP    FTPOptions
}

// Intake extracts field values from local files and remote sources.
type Intake struct {
	mapper *Mapper
	http   *HTTPFetcher
	ftp    *FTPFetcher
	pdfBin string
}

// New creates an Intake that maps extracted text onto the registry's fields.
func New(reg *model.FieldRegistry, opts Options) *Intake {
	return &Intake{
		mapper: NewMapper(reg),
		http:   NewHTTPFetcher(opts.HTTP),
		ftp:    NewFTPFetcher(opts.FTP),
		pdfBin: opts.PDFBin,
	}
}

// Mapper returns the keyword mapper, for callers that already hold text.
func (in *Intake) Mapper() *Mapper {
	return in.mapper
}

// FromFile extracts field values from a local file, dispatching on extension.
// PDFs go through pdftotext, spreadsheets through the row mapper, and
// everything else is treated as plain text.
func (in *Intake) FromFile(ctx context.Context, path string) (*Result, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, err := ExtractPDFText(ctx, in.pdfBin, path)
		if err != nil {
			return nil, err
		}
		return in.mapper.MapText(text), nil
	case ".xlsx":
		rows, err := ReadSheet(path, SheetOptions{})
		if err != nil {
			return nil, err
		}
		return in.mapper.MapRows(rows), nil
	case ".csv":
		rows, err := ReadCSV(path)
		if err != nil {
			return nil, err
		}
		return in.mapper.MapRows(rows), nil
	default:
		text, err := ReadTextFile(path, "")
		if err != nil {
			return nil, err
		}
		return in.mapper.MapText(text), nil
	}
}

// FromURL downloads a source document over http(s) or ftp into a temp file
// and extracts field values from it. The temp file keeps the URL's extension
// so FromFile dispatches correctly.
func (in *Intake) FromURL(ctx context.Context, rawURL string) (*Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "intake: parse url %s", rawURL)
	}

	tmp, err := os.CreateTemp("", "intake-*"+filepath.Ext(u.Path))
	if err != nil {
		return nil, eris.Wrap(err, "intake: create temp file")
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath) //nolint:errcheck

	var n int64
	switch u.Scheme {
	case "http", "https":
		n, err = in.http.DownloadToFile(ctx, rawURL, tmpPath)
	case "ftp":
		n, err = in.ftp.DownloadToFile(ctx, rawURL, tmpPath)
	default:
		return nil, eris.Errorf("intake: unsupported scheme %q", u.Scheme)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "intake: download %s", rawURL)
	}

	zap.L().Debug("intake: downloaded source",
		zap.String("url", rawURL),
		zap.Int64("bytes", n),
	)

	return in.FromFile(ctx, tmpPath)
}

// FromReader extracts field values from an already-open text stream.
func (in *Intake) FromReader(r io.Reader, charsetName string) (*Result, error) {
	decoded, err := DecodeReader(r, charsetName)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(decoded)
	if err != nil {
		return nil, eris.Wrap(err, "intake: read stream")
	}
	return in.mapper.MapText(string(data)), nil
}

// ApplyValues writes extracted values into a session store under the given
// source. Returns the number of fields written.
func ApplyValues(st *session.Store, values []ExtractedValue, source model.ValueSource) int {
	n := 0
	for _, v := range values {
		st.SetValue(v.FieldKey, v.Value, source)
		n++
	}
	return n
}
