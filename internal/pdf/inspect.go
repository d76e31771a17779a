// Package pdfutil checks that uploads are readable PDF documents.
package pdfutil

import (
	"bytes"
	"errors"
	"fmt"

	pdf "github.com/ledongthuc/pdf"
)

// ErrMalformed is returned for payloads the PDF reader cannot open.
var ErrMalformed = errors.New("malformed pdf")

// Info is what ingest records about a PDF.
type Info struct {
	Pages int
}

// Inspector opens PDFs with ledongthuc/pdf.
type Inspector struct{}

// Inspect parses the cross-reference table and page tree of data.
func (Inspector) Inspect(data []byte) (info Info, err error) {
	// The reader panics on some corrupt inputs; report those as malformed.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrMalformed, r)
		}
	}()
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	pages := doc.NumPage()
	if pages <= 0 {
		return Info{}, fmt.Errorf("%w: no pages", ErrMalformed)
	}
	return Info{Pages: pages}, nil
}
