package asf

import (
	"bytes"

	"github.com/kumaryu/peercaststation-sub003/av"
)

// sniffChunks is how many leading chunks TryDetect looks through.
const sniffChunks = 8

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

// TryDetect looks for a header chunk among the first chunks of prefix.
func (f *Factory) TryDetect(prefix []byte) (string, string, bool) {
	r := bytes.NewReader(prefix)
	for i := 0; i < sniffChunks; i++ {
		c, err := ReadChunk(r)
		if err != nil {
			return "", "", false
		}
		if c.Kind() != ChunkHeader {
			continue
		}
		header, _ := ParseHeaderChunk(c)
		contentType, mimeType, _ := header.ContentType()
		return contentType, mimeType, true
	}
	return "", "", false
}
