package pdfutil

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

// minimalPDF assembles a well-formed PDF with the given number of blank
// pages, computing the cross-reference offsets as it writes.
func minimalPDF(pages int) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	var offsets []int
	object := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}
	kids := ""
	for i := 0; i < pages; i++ {
		kids += fmt.Sprintf("%d 0 R ", 3+i)
	}
	object("<< /Type /Catalog /Pages 2 0 R >>")
	object(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, pages))
	for i := 0; i < pages; i++ {
		object("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func TestInspectCountsPages(t *testing.T) {
	for _, pages := range []int{1, 3} {
		info, err := (Inspector{}).Inspect(minimalPDF(pages))
		if err != nil {
			t.Fatalf("inspect %d-page pdf: %v", pages, err)
		}
		if info.Pages != pages {
			t.Fatalf("expected %d pages, got %d", pages, info.Pages)
		}
	}
}

func TestInspectRejectsGarbage(t *testing.T) {
	trailingJunk := append(minimalPDF(1), "\n\x00\x00junk"...)
	for _, data := range [][]byte{nil, []byte("not a pdf"), []byte("%PDF-1.4\n%%EOF"), trailingJunk} {
		if _, err := (Inspector{}).Inspect(data); !errors.Is(err, ErrMalformed) {
			t.Fatalf("expected malformed for %q, got %v", data, err)
		}
	}
}
