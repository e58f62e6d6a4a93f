package report

import (
	"fmt"
	"io"

	"github.com/banshee-data/rehab.report/internal/fsutil"
	"github.com/banshee-data/rehab.report/internal/security"
)

func writeFile(fsys fsutil.FileSystem, path string, render func(io.Writer) error) error {
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := render(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Save writes the HTML page and the PNG plot into dir, creating it when
// missing. Files are named after the session id.
func Save(fsys fsutil.FileSystem, dir string, s Session) (htmlPath, pngPath string, err error) {
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create report directory: %w", err)
	}
	if htmlPath, err = security.ReportPath(dir, s.Summary.SessionID, ".html"); err != nil {
		return "", "", err
	}
	if pngPath, err = security.ReportPath(dir, s.Summary.SessionID, ".png"); err != nil {
		return "", "", err
	}

	if err := writeFile(fsys, htmlPath, func(w io.Writer) error { return WriteHTML(w, s) }); err != nil {
		return "", "", err
	}
	if err := writeFile(fsys, pngPath, func(w io.Writer) error { return WritePNG(w, s) }); err != nil {
		return "", "", err
	}
	return htmlPath, pngPath, nil
}
