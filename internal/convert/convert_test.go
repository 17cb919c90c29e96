package convert

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"essayhub/internal/pdf"
)

func TestConvert_PDFPassthrough(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	src := filepath.Join(t.TempDir(), "order_3_submission.pdf")
	require.NoError(t, os.WriteFile(src, []byte("%PDF-1.4 fake"), 0o644))

	c := NewDocumentConverter(root, pdf.NewDocumentGenerator(root))
	name, err := c.Convert(src, 3, "Essay")
	require.NoError(t, err)
	assert.Equal(t, "preview_order_3.pdf", name)

	b, err := os.ReadFile(filepath.Join(root, name))
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 fake"), b)
}

func TestConvert_TextRendersPDF(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	src := filepath.Join(t.TempDir(), "order_4_submission.txt")
	require.NoError(t, os.WriteFile(src, []byte("First paragraph.\n\nSecond paragraph.\n"), 0o644))

	c := NewDocumentConverter(root, pdf.NewDocumentGenerator(root))
	name, err := c.Convert(src, 4, "Essay")
	require.NoError(t, err)
	assert.Equal(t, "preview_order_4.pdf", name)

	b, err := os.ReadFile(filepath.Join(root, name))
	require.NoError(t, err)
	assert.True(t, len(b) > 4)
	assert.Equal(t, "%PDF", string(b[:4]))
}

func TestConvert_OfficeFormatWithoutSoffice(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	src := filepath.Join(t.TempDir(), "order_5_submission.docx")
	require.NoError(t, os.WriteFile(src, []byte("not really docx"), 0o644))

	c := NewDocumentConverter(root, pdf.NewDocumentGenerator(root))
	c.Soffice = filepath.Join(t.TempDir(), "definitely-missing-binary")

	_, err := c.Convert(src, 5, "Essay")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "converter unavailable")
}

func TestConvert_MissingSource(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	c := NewDocumentConverter(root, pdf.NewDocumentGenerator(root))

	_, err := c.Convert(filepath.Join(root, "nope.pdf"), 6, "Essay")
	assert.Error(t, err)
}
