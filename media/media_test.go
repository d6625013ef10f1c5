package media

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/storygraph"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	return s
}

func docx(t *testing.T, body string) []byte {
	t.Helper()
	parts := []struct{ name, xml string }{
		{"[Content_Types].xml", `<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
			`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`},
		{"_rels/.rels", `<?xml version="1.0"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/></Relationships>`},
		{"word/_rels/document.xml.rels", `<?xml version="1.0"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`},
		{"word/document.xml", `<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body + `</w:body></w:document>`},
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		w, err := zw.Create(p.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(p.xml))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestPath(t *testing.T) {
	s := newStore(t)

	p, err := s.Path("abc.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Dir(), "abc.png"), p)

	for _, bad := range []string{"", "../secret", "a/b.png", `a\b.png`, ".hidden", ".."} {
		_, err := s.Path(bad)
		assert.ErrorIs(t, err, ErrInvalidName, bad)
	}
}

func TestSaveAndRead(t *testing.T) {
	s := newStore(t)
	name, err := s.Save([]byte("png-bytes"), ".PNG")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, ".png"))
	assert.Len(t, name, 32+len(".png"))

	data, err := s.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	_, err = s.ReadFile("missing.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpload(t *testing.T) {
	s := newStore(t)
	ref, err := s.Upload(strings.NewReader("INT. HARBOUR"), "Episode 1.TXT")
	require.NoError(t, err)
	assert.Equal(t, "Episode 1.TXT", ref.Name)
	assert.True(t, strings.HasSuffix(ref.ServerName, ".txt"))
	assert.Equal(t, URL(ref.ServerName), ref.URL)

	_, err = os.Stat(filepath.Join(s.Dir(), ref.ServerName))
	assert.NoError(t, err)
}

func TestNameFromURL(t *testing.T) {
	assert.Equal(t, "a.png", NameFromURL("/api/file/a.png"))
	assert.Empty(t, NameFromURL("http://cdn/a.png"))
}

func TestReadDoc(t *testing.T) {
	s := newStore(t)
	txt, err := s.Save([]byte("plain script"), ".txt")
	require.NoError(t, err)
	doc, err := s.Save(docx(t,
		`<w:p><w:pPr><w:jc w:val="center"/></w:pPr><w:r><w:t>INT. </w:t></w:r><w:r><w:t xml:space="preserve">HARBOUR &amp; DOCK</w:t></w:r></w:p>`+
			`<w:p/>`+
			`<w:p w:rsidR="1"><w:r><w:t>Rain falls.</w:t></w:r></w:p>`), ".docx")
	require.NoError(t, err)
	sheet, err := s.Save([]byte("PK"), ".xlsx")
	require.NoError(t, err)
	pdf, err := s.Save([]byte("%PDF-1.4 truncated"), ".pdf")
	require.NoError(t, err)

	text, err := s.ReadDoc(txt)
	require.NoError(t, err)
	assert.Equal(t, "plain script", text)

	text, err = s.ReadDoc(doc)
	require.NoError(t, err)
	assert.Equal(t, "INT. HARBOUR & DOCK\n\nRain falls.", text)

	_, err = s.ReadDoc(sheet)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = s.ReadDoc(pdf)
	assert.ErrorContains(t, err, "media: open pdf")

	bad, err := s.Save([]byte("not a zip"), ".docx")
	require.NoError(t, err)
	_, err = s.ReadDoc(bad)
	assert.Error(t, err)
}

func TestReadDocRunContent(t *testing.T) {
	s := newStore(t)
	name, err := s.Save(docx(t,
		`<w:p><w:r><w:t>SHOT 1</w:t><w:tab/><w:t>WIDE</w:t></w:r></w:p>`+
			`<w:p><w:r><w:t>Line one</w:t><w:br/><w:t>Line two</w:t></w:r></w:p>`+
			`<w:p><w:r><w:t>Before</w:t></w:r>`+
			`<w:r><mc:AlternateContent xmlns:mc="http://schemas.openxmlformats.org/markup-compatibility/2006"><mc:Fallback><w:pict><v:textbox xmlns:v="urn:schemas-microsoft-com:vml"><w:txbxContent>`+
			`<w:p><w:r><w:t>Boxed</w:t></w:r></w:p>`+
			`</w:txbxContent></v:textbox></w:pict></mc:Fallback></mc:AlternateContent></w:r>`+
			`<w:r><w:t xml:space="preserve"> After</w:t></w:r></w:p>`+
			`<w:p><w:r><w:t>Next</w:t></w:r></w:p>`), ".docx")
	require.NoError(t, err)

	text, err := s.ReadDoc(name)
	require.NoError(t, err)
	lines := strings.Split(text, "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "SHOT 1\tWIDE", lines[0])
	assert.Equal(t, []string{"Line one", "Line two"}, lines[1:3])
	assert.Equal(t, "Before After", lines[3])
	assert.Equal(t, "Next", lines[4])
	assert.NotContains(t, text, "Boxed")
}

func TestReadText(t *testing.T) {
	s := newStore(t)
	a, err := s.Save([]byte("scene one"), ".txt")
	require.NoError(t, err)
	b, err := s.Save([]byte("scene two"), ".txt")
	require.NoError(t, err)

	var r storygraph.DocReader = s
	text, err := r.ReadText(context.Background(), []storygraph.FileRef{
		{Name: "1.txt", ServerName: a},
		{Name: "2.txt", URL: URL(b)},
	})
	require.NoError(t, err)
	assert.Equal(t, "scene one\n\nscene two", text)

	_, err = r.ReadText(context.Background(), []storygraph.FileRef{{ServerName: "gone.txt"}})
	assert.ErrorIs(t, err, ErrNotFound)
}
