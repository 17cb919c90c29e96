package pdf

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Generator is the interface the services depend on (easy to stub in tests).
type Generator interface {
	GeneratePreviewFromText(data PreviewData) (string, error)
	GenerateReceipt(data ReceiptData) (string, error)
}

type DocumentGenerator struct {
	RootDir string // storage root, e.g. "./files"
}

type PreviewData struct {
	OrderID    int64
	OrderTitle string
	SourcePath string // plain-text source to render
	Filename   string // target name (no directories); generated when empty
}

type ReceiptData struct {
	OrderID    int64
	OrderTitle string
	ClientName string
	Amount     string
	Ref        string
	PaidAt     time.Time
	Filename   string
}

func NewDocumentGenerator(rootDir string) *DocumentGenerator {
	return &DocumentGenerator{RootDir: filepath.Clean(rootDir)}
}

// GeneratePreviewFromText renders a plain-text submission into the normalized
// preview PDF. Returns the filename relative to RootDir.
func (g *DocumentGenerator) GeneratePreviewFromText(data PreviewData) (string, error) {
	filename := data.Filename
	if filename == "" {
		filename = fmt.Sprintf("preview_order_%d.pdf", data.OrderID)
	}
	absPath, filename, err := g.ensureTarget(filename)
	if err != nil {
		return "", err
	}

	src, err := os.Open(data.SourcePath)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Order #%d — %s", data.OrderID, data.OrderTitle), false)
	pdf.SetAuthor("EssayHub", false)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, data.OrderTitle, "", 1, "L", false, 0, "")
	g.hr(pdf)
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 11)
	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \t")
		if line == "" {
			pdf.Ln(4)
			continue
		}
		pdf.MultiCell(0, 6, line, "", "L", false)
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("read source: %w", err)
	}

	if err := pdf.OutputFileAndClose(absPath); err != nil {
		return "", fmt.Errorf("write pdf: %w", err)
	}
	return filename, nil
}

func (g *DocumentGenerator) GenerateReceipt(data ReceiptData) (string, error) {
	filename := data.Filename
	if filename == "" {
		filename = fmt.Sprintf("receipt_order_%d.pdf", data.OrderID)
	}
	absPath, filename, err := g.ensureTarget(filename)
	if err != nil {
		return "", err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Receipt #%d", data.OrderID), false)
	pdf.SetAuthor("EssayHub", false)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, "PAYMENT RECEIPT", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 12)
	sub := fmt.Sprintf("No. EH-%06d  of  %s", data.OrderID, data.PaidAt.Format("02.01.2006"))
	pdf.CellFormat(0, 7, sub, "", 1, "C", false, 0, "")
	g.hr(pdf)
	pdf.Ln(3)

	g.kvLine(pdf, "Client", data.ClientName)
	g.kvLine(pdf, "Order", data.OrderTitle)
	g.kvLine(pdf, "Amount", fmt.Sprintf("KES %s", data.Amount))
	g.kvLine(pdf, "Reference", data.Ref)
	g.kvLine(pdf, "Paid at", data.PaidAt.Format(time.RFC3339))
	pdf.Ln(2)
	g.hr(pdf)

	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 6,
		"This receipt confirms payment for the order above. "+
			"The full document is available for download from your account.",
		"", "L", false)

	if err := pdf.OutputFileAndClose(absPath); err != nil {
		return "", fmt.Errorf("write pdf: %w", err)
	}
	return filename, nil
}

// ensureTarget keeps the target inside RootDir (basename only, no nesting).
// Returns the absolute path and the cleaned filename actually used.
func (g *DocumentGenerator) ensureTarget(filename string) (string, string, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." {
		return "", "", fmt.Errorf("bad filename")
	}
	if err := os.MkdirAll(g.RootDir, 0o755); err != nil {
		return "", "", fmt.Errorf("mkdir root: %w", err)
	}
	return filepath.Join(g.RootDir, filename), filename, nil
}

func (g *DocumentGenerator) hr(pdf *gofpdf.Fpdf) {
	x, y := pdf.GetXY()
	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	pdf.SetDrawColor(180, 180, 180)
	pdf.Line(left, y, pageW-right, y)
	pdf.SetXY(x, y+2)
}

func (g *DocumentGenerator) kvLine(pdf *gofpdf.Fpdf, key, val string) {
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(45, 7, key+":", "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, val, "", 1, "L", false, 0, "")
}
