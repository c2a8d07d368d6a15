package intake

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/rotisserie/eris"
)

// ExtractPDFText pulls the text layer out of a PDF with the pdftotext CLI
// in layout mode, which keeps label/value pairs on the same line the way
// the keyword mapper expects. binPath falls back to "pdftotext" on PATH.
// Image-only PDFs need OCR upstream; this reads existing text only.
func ExtractPDFText(ctx context.Context, binPath, pdfPath string) (string, error) {
	if binPath == "" {
		binPath = "pdftotext"
	}
	cmd := exec.CommandContext(ctx, binPath, "-layout", pdfPath, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "intake: pdftotext failed for %s: %s", pdfPath, stderr.String())
	}
	return stdout.String(), nil
}
