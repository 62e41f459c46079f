package scorm

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Fixed file names inside every generated package.
const (
	LaunchFile   = "player.html"
	FallbackFile = "index_lms.html"
	ConfigFile   = "Config.js"
	ManifestFile = "imsmanifest.xml"
	PDFFile      = "data/content.pdf"
)

// viewerAssets are copied from the shipped asset bundle when present.
// Missing entries are skipped, not errors: a stripped-down deployment may
// omit optional assets.
var viewerAssets = []string{
	LaunchFile,
	FallbackFile,
	"pdfviewer.css",
	"pdfviewer.js",
	"scorm-api.js",
}

// optionalAssets appear in the manifest only when actually staged.
var optionalAssets = []string{
	"pdfviewer.css",
	"pdfviewer.js",
	"scorm-api.js",
}

// packageRetention is how long a staging directory survives after the
// archive has been streamed. Best-effort reclamation; a crash before the
// timer fires leaves the directory for the next operator sweep.
const packageRetention = 5 * time.Minute

// FetchError reports a failed download of the source PDF. Status is the
// upstream HTTP status, or 0 for transport failures.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetching %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Assembler stages viewer assets, a downloaded PDF and generated
// manifest/config files into an isolated working directory and streams the
// result as a zip archive. Each Build call is independent; concurrent
// builds only share the filesystem namespace, which uuid-keyed directories
// keep collision-free.
type Assembler struct {
	AssetDir  string
	WorkRoot  string
	Client    *http.Client
	Retention time.Duration
}

func NewAssembler(assetDir, workRoot string) *Assembler {
	return &Assembler{
		AssetDir:  assetDir,
		WorkRoot:  workRoot,
		Client:    http.DefaultClient,
		Retention: packageRetention,
	}
}

// Build assembles a package for the PDF at pdfURL and writes the archive to
// w. Nothing is written to w until staging has fully succeeded, so a caller
// that has received any bytes knows the package content was complete. The
// staging directory is scheduled for deletion after the retention window
// regardless of streaming outcome.
func (a *Assembler) Build(pdfURL string, cfg Config, w io.Writer) error {
	cfg.ApplyDefaults(PDFFile)
	if cfg.Title == "" {
		cfg.Title = DefaultTitle
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("package config: %w", err)
	}

	workDir := filepath.Join(a.WorkRoot, "pkg-"+uuid.New().String())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("creating working directory: %w", err)
	}
	defer a.scheduleCleanup(workDir)

	if err := a.copyAssets(workDir); err != nil {
		return err
	}
	if err := a.downloadPDF(pdfURL, workDir); err != nil {
		return err
	}

	configPath := filepath.Join(workDir, ConfigFile)
	if err := os.WriteFile(configPath, []byte(RenderConfigJS(cfg)), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", ConfigFile, err)
	}

	if err := ensureFallbackPage(workDir, cfg.Title); err != nil {
		return err
	}

	manifest := BuildManifest("pdfscorm-"+uuid.New().String(), cfg.Title, LaunchFile, a.resourceList(workDir))
	encoded, err := manifest.Encode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(workDir, ManifestFile), encoded, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", ManifestFile, err)
	}

	return writeArchive(workDir, w)
}

// copyAssets stages the viewer bundle. A missing asset is skipped; a
// present but unreadable one aborts the build.
func (a *Assembler) copyAssets(workDir string) error {
	for _, name := range viewerAssets {
		src := filepath.Join(a.AssetDir, name)
		if _, err := os.Stat(src); os.IsNotExist(err) {
			continue
		}
		if err := copyFile(src, filepath.Join(workDir, name)); err != nil {
			return fmt.Errorf("staging asset %s: %w", name, err)
		}
	}
	return nil
}

func (a *Assembler) downloadPDF(pdfURL, workDir string) error {
	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Get(pdfURL)
	if err != nil {
		return &FetchError{URL: pdfURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &FetchError{URL: pdfURL, Status: resp.StatusCode}
	}

	dest := filepath.Join(workDir, filepath.FromSlash(PDFFile))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", PDFFile, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return &FetchError{URL: pdfURL, Err: err}
	}
	return nil
}

// resourceList enumerates the manifest file inventory: the fixed set every
// package carries plus whichever optional assets were actually staged.
func (a *Assembler) resourceList(workDir string) []string {
	files := []string{LaunchFile, FallbackFile, ConfigFile, PDFFile}
	for _, name := range optionalAssets {
		if _, err := os.Stat(filepath.Join(workDir, name)); err == nil {
			files = append(files, name)
		}
	}
	return files
}

func (a *Assembler) scheduleCleanup(dir string) {
	retention := a.Retention
	if retention <= 0 {
		retention = packageRetention
	}
	time.AfterFunc(retention, func() {
		// The directory may already be gone; RemoveAll is idempotent.
		if err := os.RemoveAll(dir); err != nil {
			log.Printf("[scorm] cleanup of %s failed: %v", dir, err)
		}
	})
}

// ensureFallbackPage synthesizes a minimal LMS launch page when the asset
// bundle did not ship one, so the manifest's fallback reference never
// dangles.
func ensureFallbackPage(workDir, title string) error {
	path := filepath.Join(workDir, FallbackFile)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	page := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>%s</title></head>
<body style="margin:0">
<iframe src="%s?file=%s" style="border:0;width:100%%;height:100vh"></iframe>
</body>
</html>
`, htmlEscape(title), LaunchFile, PDFFile)
	if err := os.WriteFile(path, []byte(page), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", FallbackFile, err)
	}
	return nil
}

func htmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}

// writeArchive streams the working directory as a zip without materializing
// the archive in memory. Entry names are forward-slash relative paths.
func writeArchive(workDir string, w io.Writer) error {
	zw := zip.NewWriter(w)
	err := filepath.WalkDir(workDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(workDir, path)
		if err != nil {
			return err
		}
		entry, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(entry, src)
		return err
	})
	if err != nil {
		zw.Close()
		return fmt.Errorf("streaming archive: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalizing archive: %w", err)
	}
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
