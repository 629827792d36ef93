// Package pdftest builds minimal PDF files for tests.
package pdftest

import (
	"fmt"
	"os"
	"strings"
	"testing"
)

// WriteFile writes a minimal PDF at path with one page per entry of
// pageTexts. An empty entry produces a page with an empty content stream.
func WriteFile(t *testing.T, path string, pageTexts []string) {
	t.Helper()
	n := len(pageTexts)
	fontObj := 3 + 2*n

	var objs []string
	kids := make([]string, n)
	for i := 0; i < n; i++ {
		kids[i] = fmt.Sprintf("%d 0 R", 3+2*i)
	}
	objs = append(objs, "1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	objs = append(objs, fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n",
		strings.Join(kids, " "), n))
	for i := 0; i < n; i++ {
		pageObj := 3 + 2*i
		contentObj := pageObj + 1
		objs = append(objs, fmt.Sprintf(
			"%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R /Resources << /Font << /F1 %d 0 R >> >> >>\nendobj\n",
			pageObj, contentObj, fontObj))
		var stream string
		if pageTexts[i] != "" {
			stream = fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", pageTexts[i])
		}
		objs = append(objs, fmt.Sprintf("%d 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n",
			contentObj, len(stream), stream))
	}
	objs = append(objs, fmt.Sprintf(
		"%d 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n", fontObj))

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, obj := range objs {
		offsets[i] = b.Len()
		b.WriteString(obj)
	}
	xrefStart := b.Len()
	size := len(objs) + 1
	b.WriteString(fmt.Sprintf("xref\n0 %d\n", size))
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		b.WriteString(fmt.Sprintf("%010d 00000 n \n", off))
	}
	b.WriteString(fmt.Sprintf("trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", size, xrefStart))

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		t.Fatal(err)
	}
}
