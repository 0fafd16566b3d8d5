package asf

import (
	"bytes"
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/kumaryu/peercaststation-sub003/utils/pio"
)

// ObjectKind classifies an ASF object by its GUID.
type ObjectKind int

const (
	ObjectUnknown ObjectKind = iota
	ObjectHeader
	ObjectData
	ObjectFileProperty
	ObjectStreamProperty
	ObjectStreamBitrate
)

var objectKinds = map[GUID]ObjectKind{
	GUIDHeader:           ObjectHeader,
	GUIDData:             ObjectData,
	GUIDFileProperties:   ObjectFileProperty,
	GUIDStreamProperties: ObjectStreamProperty,
	GUIDStreamBitrate:    ObjectStreamBitrate,
}

// StreamKind is the media type announced by a stream properties object.
type StreamKind int

const (
	StreamUnknown StreamKind = iota
	StreamAudio
	StreamVideo
)

func (k StreamKind) String() string {
	switch k {
	case StreamAudio:
		return "audio"
	case StreamVideo:
		return "video"
	}
	return "unknown"
}

const (
	objectHeaderSize = 24
	// Objects inside a header chunk can never exceed the chunk itself.
	maxObjectSize = 1 << 24
)

type Object struct {
	GUID   GUID
	Length uint64
	Data   []byte
}

func (o *Object) Kind() ObjectKind {
	return objectKinds[o.GUID]
}

// ReadObject reads a GUID, a 64 bit length and length-24 payload bytes.
func ReadObject(r io.Reader) (*Object, error) {
	var head [objectHeaderSize]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, err
	}
	o := &Object{Length: pio.U64LE(head[16:24])}
	copy(o.GUID[:], head[0:16])
	if o.Length < objectHeaderSize || o.Length > maxObjectSize {
		return nil, errors.Wrapf(ErrMalformed, "object %s length %d", o.GUID, o.Length)
	}
	o.Data = make([]byte, o.Length-objectHeaderSize)
	if _, err := io.ReadFull(r, o.Data); err != nil {
		return nil, unexpected(err)
	}
	return o, nil
}

// File properties payload offsets.
const (
	filePropPackets       = 32
	filePropMinPacketSize = 68
	filePropMaxPacketSize = 72
	filePropByteRate      = 76
	filePropSize          = 80
)

// HeaderInfo is what a header object tells about the stream.
type HeaderInfo struct {
	HasFileProperty bool
	Packets         uint64
	MinPacketSize   uint32
	MaxPacketSize   uint32
	Bitrate         int // kbps, from file properties
	Streams         []StreamKind
	// average bitrates in bps from stream bitrate properties, nil when absent
	StreamBitrates []uint32
}

// Stream bitrate record: flags (stream number in the low 7 bits), average bps.
const streamBitrateRecordSize = 6

// ChannelBitrate returns the bitrate in kbps. File properties win; without
// them the stream bitrate records are summed.
func (h HeaderInfo) ChannelBitrate() (int, bool) {
	if h.HasFileProperty {
		return h.Bitrate, true
	}
	if h.StreamBitrates == nil {
		return 0, false
	}
	var sum uint64
	for _, b := range h.StreamBitrates {
		sum += uint64(b)
	}
	return int(math.Ceil(float64(sum) / 1000)), true
}

// ParseHeader reads the children of a header object. Unknown and broken
// children are skipped; the error reports the first child that could not be
// read while everything before it is kept.
func ParseHeader(o *Object) (HeaderInfo, error) {
	var info HeaderInfo
	if o.Kind() != ObjectHeader {
		return info, errors.Wrapf(ErrMalformed, "not a header object: %s", o.GUID)
	}
	if len(o.Data) < 6 {
		return info, errors.Wrap(ErrMalformed, "short header object")
	}
	count := pio.U32LE(o.Data[0:4])
	r := bytes.NewReader(o.Data[6:])
	for i := uint32(0); i < count; i++ {
		child, err := ReadObject(r)
		if err != nil {
			return info, errors.Wrapf(err, "header child %d", i)
		}
		switch child.Kind() {
		case ObjectFileProperty:
			if len(child.Data) < filePropSize {
				continue
			}
			info.HasFileProperty = true
			info.Packets = pio.U64LE(child.Data[filePropPackets:])
			info.MinPacketSize = pio.U32LE(child.Data[filePropMinPacketSize:])
			info.MaxPacketSize = pio.U32LE(child.Data[filePropMaxPacketSize:])
			byteRate := pio.U32LE(child.Data[filePropByteRate:])
			info.Bitrate = int(math.Ceil(float64(byteRate) * 8 / 1000))
		case ObjectStreamProperty:
			kind := StreamUnknown
			if len(child.Data) >= 16 {
				var g GUID
				copy(g[:], child.Data[:16])
				switch g {
				case GUIDStreamTypeAudio:
					kind = StreamAudio
				case GUIDStreamTypeVideo:
					kind = StreamVideo
				}
			}
			info.Streams = append(info.Streams, kind)
		case ObjectStreamBitrate:
			if len(child.Data) < 2 {
				continue
			}
			count := int(pio.U16LE(child.Data[0:2]))
			if len(child.Data) < 2+count*streamBitrateRecordSize {
				continue
			}
			info.StreamBitrates = make([]uint32, 0, count)
			for j := 0; j < count; j++ {
				rec := child.Data[2+j*streamBitrateRecordSize:]
				info.StreamBitrates = append(info.StreamBitrates, pio.U32LE(rec[2:6]))
			}
		}
	}
	return info, nil
}

const (
	ContentTypeWMV = "WMV"
	ContentTypeWMA = "WMA"
	ContentTypeASF = "ASF"
)

// ContentType picks the content type from the stream kinds: any video makes
// it WMV, otherwise any audio makes it WMA.
func (h HeaderInfo) ContentType() (contentType, mimeType, ext string) {
	hasAudio := false
	for _, k := range h.Streams {
		switch k {
		case StreamVideo:
			return ContentTypeWMV, "video/x-ms-wmv", ".wmv"
		case StreamAudio:
			hasAudio = true
		}
	}
	if hasAudio {
		return ContentTypeWMA, "audio/x-ms-wma", ".wma"
	}
	return ContentTypeASF, "video/x-ms-asf", ".asf"
}

// ParseHeaderChunk parses the header object carried by a header chunk.
func ParseHeaderChunk(c *Chunk) (HeaderInfo, error) {
	o, err := ReadObject(bytes.NewReader(c.Data))
	if err != nil {
		return HeaderInfo{}, errors.Wrap(err, "header chunk")
	}
	return ParseHeader(o)
}
