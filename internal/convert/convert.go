package convert

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"essayhub/internal/pdf"
)

// Converter normalizes an uploaded submission into a PDF preview artifact.
// Best effort: callers log failures and move on, the request path never waits
// on a conversion.
type Converter interface {
	// Convert returns the produced PDF filename (relative to the files root).
	Convert(sourcePath string, orderID int64, orderTitle string) (string, error)
}

type DocumentConverter struct {
	RootDir string
	PDFGen  pdf.Generator
	// Soffice is the LibreOffice binary used for office formats; left empty,
	// "soffice" from PATH is tried.
	Soffice string
}

func NewDocumentConverter(rootDir string, gen pdf.Generator) *DocumentConverter {
	return &DocumentConverter{RootDir: filepath.Clean(rootDir), PDFGen: gen}
}

func (c *DocumentConverter) Convert(sourcePath string, orderID int64, orderTitle string) (string, error) {
	target := fmt.Sprintf("preview_order_%d.pdf", orderID)

	switch strings.ToLower(filepath.Ext(sourcePath)) {
	case ".pdf":
		// already normalized: copy under the preview name
		if err := copyFile(sourcePath, filepath.Join(c.RootDir, target)); err != nil {
			return "", err
		}
		return target, nil
	case ".txt", ".md":
		return c.PDFGen.GeneratePreviewFromText(pdf.PreviewData{
			OrderID:    orderID,
			OrderTitle: orderTitle,
			SourcePath: sourcePath,
			Filename:   target,
		})
	default:
		return c.convertWithSoffice(sourcePath, target)
	}
}

// convertWithSoffice shells out to LibreOffice for docx/odt/etc. Missing tool
// is an ordinary conversion failure, not a crash.
func (c *DocumentConverter) convertWithSoffice(sourcePath, target string) (string, error) {
	bin := c.Soffice
	if bin == "" {
		bin = "soffice"
	}
	if _, err := exec.LookPath(bin); err != nil {
		return "", fmt.Errorf("converter unavailable: %w", err)
	}

	outDir, err := os.MkdirTemp("", "essayhub-convert-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(outDir)

	cmd := exec.Command(bin, "--headless", "--convert-to", "pdf", "--outdir", outDir, sourcePath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("soffice: %v: %s", err, strings.TrimSpace(string(out)))
	}

	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	produced := filepath.Join(outDir, base+".pdf")
	if _, err := os.Stat(produced); err != nil {
		return "", fmt.Errorf("soffice produced no output: %w", err)
	}
	if err := copyFile(produced, filepath.Join(c.RootDir, target)); err != nil {
		return "", err
	}
	return target, nil
}

func copyFile(src, dst string) error {
	b, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, b, 0o644)
}
