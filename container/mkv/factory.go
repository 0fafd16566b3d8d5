package mkv

import (
	"bytes"
	"time"

	"github.com/kumaryu/peercaststation-sub003/av"
	"github.com/kumaryu/peercaststation-sub003/container/ebml"
)

const Name = "Matroska (MKV or WebM)"

const (
	ContentTypeMKV  = "MKV"
	ContentTypeWEBM = "WEBM"
	MIMETypeMKV     = "video/x-matroska"
	MIMETypeWEBM    = "video/webm"
)

var ebmlMagic = []byte{0x1a, 0x45, 0xdf, 0xa3}

type Factory struct {
	// BitrateWindow overrides DefaultBitrateWindow when positive.
	BitrateWindow time.Duration
}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Name() string {
	return Name
}

func (f *Factory) Create(ch av.Channel) av.ContentReader {
	r := NewReader(ch)
	if f.BitrateWindow > 0 {
		r.window.span = f.BitrateWindow
	}
	return r
}

// TryDetect recognizes a prefix starting with the EBML root element. The
// doc type decides between WebM and Matroska when the whole root element is
// inside the prefix.
func (f *Factory) TryDetect(prefix []byte) (string, string, bool) {
	if !bytes.HasPrefix(prefix, ebmlMagic) {
		return "", "", false
	}
	r := ebml.NewReader(bytes.NewReader(prefix))
	if e, err := r.ReadElement(); err == nil {
		if doc, _ := ebml.ParseDocument(e.Data); doc.DocType == "webm" {
			return ContentTypeWEBM, MIMETypeWEBM, true
		}
	}
	return ContentTypeMKV, MIMETypeMKV, true
}
