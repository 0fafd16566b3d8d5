package flv

import (
	"bytes"

	"github.com/kumaryu/peercaststation-sub003/av"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Name() string {
	return Name
}

func (f *Factory) Create(ch av.Channel) av.ContentReader {
	return NewReader(ch)
}

func (f *Factory) TryDetect(prefix []byte) (string, string, bool) {
	if len(prefix) >= fileHeaderLen && bytes.HasPrefix(prefix, signature) {
		return ContentType, MIMEType, true
	}
	return "", "", false
}
