package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// createTestDOCX builds a minimal DOCX archive from the given parts.
func createTestDOCX(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	parts["[Content_Types].xml"] = `<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="xml" ContentType="application/xml"/>
</Types>`
	for name, body := range parts {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

func documentXML(body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?><w:document ` + wordNS + `><w:body>` + body + `</w:body></w:document>`
}

func TestSupportedMIMETypes(t *testing.T) {
	assert.Equal(t, []string{MIMEType}, New().SupportedMIMETypes())
}

func TestNormalise_Success(t *testing.T) {
	data := createTestDOCX(t, map[string]string{
		"word/document.xml": documentXML(`<w:p><w:r><w:t>Hello World</w:t></w:r></w:p>`),
		"docProps/core.xml": `<?xml version="1.0"?><cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title>Annual Report</dc:title></cp:coreProperties>`,
		"docProps/app.xml":  `<?xml version="1.0"?><Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties"><Pages>7</Pages></Properties>`,
	})

	result, err := New().Normalise(context.Background(), &domain.RawDocument{
		Filename: "report.docx", MIMEType: MIMEType, Content: data,
	})
	require.NoError(t, err)

	doc := result.Document
	assert.Equal(t, "Hello World", doc.Content)
	assert.Equal(t, "Annual Report", doc.Title)
	assert.Equal(t, 7, doc.Pages)
	assert.Equal(t, "docx", doc.Metadata["format"])
}

func TestNormalise_ParagraphsRunsTabsAndBreaks(t *testing.T) {
	data := createTestDOCX(t, map[string]string{
		"word/document.xml": documentXML(
			`<w:p><w:r><w:t>Hello </w:t></w:r><w:r><w:t>World</w:t></w:r></w:p>` +
				`<w:p><w:r><w:t>a</w:t><w:tab/><w:t>b</w:t><w:br/><w:t>c</w:t></w:r></w:p>`),
	})

	result, err := New().Normalise(context.Background(), &domain.RawDocument{Filename: "x.docx", Content: data})
	require.NoError(t, err)
	assert.Equal(t, "Hello World\na\tb\nc", result.Document.Content)
}

func TestNormalise_TitleFallbackAndDefaultPages(t *testing.T) {
	data := createTestDOCX(t, map[string]string{
		"word/document.xml": documentXML(`<w:p><w:r><w:t>x</w:t></w:r></w:p>`),
	})

	result, err := New().Normalise(context.Background(), &domain.RawDocument{Filename: "meeting_notes.docx", Content: data})
	require.NoError(t, err)
	assert.Equal(t, "meeting notes", result.Document.Title)
	assert.Equal(t, 1, result.Document.Pages)
}

func TestNormalise_InvalidInput(t *testing.T) {
	_, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = New().Normalise(context.Background(), &domain.RawDocument{Filename: "x.docx", Content: []byte("not a zip")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	noBody := createTestDOCX(t, map[string]string{})
	_, err = New().Normalise(context.Background(), &domain.RawDocument{Filename: "x.docx", Content: noBody})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
