package convert

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// officeExtensions are the formats delegated to the office suite.
var officeExtensions = map[string]bool{
	".doc":  true,
	".docx": true,
	".ppt":  true,
	".pptx": true,
	".xls":  true,
	".xlsx": true,
	".odt":  true,
	".odp":  true,
	".ods":  true,
	".rtf":  true,
	".txt":  true,
}

// OfficeConverter shells out to a headless LibreOffice per request. The
// subprocess blocks the calling request; admission control for heavy
// conversion load is the operator's concern.
type OfficeConverter struct {
	Binary  string
	Timeout time.Duration
}

func NewOfficeConverter(binary string) *OfficeConverter {
	if binary == "" {
		binary = "soffice"
	}
	return &OfficeConverter{
		Binary:  binary,
		Timeout: 2 * time.Minute,
	}
}

func (c *OfficeConverter) Accepts(ext string) bool {
	return officeExtensions[ext]
}

// Convert runs the office binary and returns the produced PDF path. A
// nonzero exit surfaces as an *ExitError carrying the process output.
func (c *OfficeConverter) Convert(ctx context.Context, src, outDir string) (string, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Binary,
		"--headless", "--norestore",
		"--convert-to", "pdf",
		"--outdir", outDir,
		src)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", &ExitError{Cmd: c.Binary, Output: string(output), Err: err}
	}

	produced := filepath.Join(outDir, pdfName(src))
	if _, err := os.Stat(produced); err != nil {
		return "", &ExitError{
			Cmd:    c.Binary,
			Output: string(output),
			Err:    fmt.Errorf("no output produced: %w", err),
		}
	}
	return produced, nil
}
