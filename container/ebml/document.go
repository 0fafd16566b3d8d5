package ebml

import (
	"github.com/pkg/errors"
)

// Document describes the EBML stream as announced by its root EBML element.
type Document struct {
	Version            int
	ReadVersion        int
	MaxIDLength        int
	MaxSizeLength      int
	DocType            string
	DocTypeVersion     int
	DocTypeReadVersion int
}

// DefaultDocument is used until a root EBML element has been read.
func DefaultDocument() Document {
	return Document{
		Version:            1,
		ReadVersion:        1,
		MaxIDLength:        4,
		MaxSizeLength:      8,
		DocType:            "matroska",
		DocTypeVersion:     1,
		DocTypeReadVersion: 1,
	}
}

// ParseDocument builds a Document from the body of a root EBML element.
// Unrecognized children are skipped. On truncated input the fields read so
// far are kept and the error is returned alongside.
func ParseDocument(body []byte) (Document, error) {
	doc := DefaultDocument()
	children, err := Children(body)
	for _, c := range children {
		switch c.ElementID() {
		case IDEBMLVersion:
			doc.Version = int(c.Uint())
		case IDEBMLReadVersion:
			doc.ReadVersion = int(c.Uint())
		case IDEBMLMaxIDLength:
			doc.MaxIDLength = lengthLimit(c.Uint(), doc.MaxIDLength)
		case IDEBMLMaxSizeLength:
			doc.MaxSizeLength = lengthLimit(c.Uint(), doc.MaxSizeLength)
		case IDDocType:
			doc.DocType = c.String()
		case IDDocTypeVersion:
			doc.DocTypeVersion = int(c.Uint())
		case IDDocTypeReadVersion:
			doc.DocTypeReadVersion = int(c.Uint())
		}
	}
	if err != nil {
		return doc, errors.Wrap(err, "parse EBML header")
	}
	return doc, nil
}

// lengthLimit keeps def for limits no VInt can have. A zero limit would
// reject every later header, the next EBML root included.
func lengthLimit(v uint64, def int) int {
	if v < 1 || v > maxVIntLength {
		return def
	}
	return int(v)
}

// Validate checks the ID and size lengths of h against the document limits.
func (doc Document) Validate(h Header) error {
	if h.ID.Len() > doc.MaxIDLength {
		return errors.Wrapf(ErrMalformed, "id length %d exceeds %d", h.ID.Len(), doc.MaxIDLength)
	}
	if h.Size.Len() > doc.MaxSizeLength {
		return errors.Wrapf(ErrMalformed, "size length %d exceeds %d", h.Size.Len(), doc.MaxSizeLength)
	}
	return nil
}
