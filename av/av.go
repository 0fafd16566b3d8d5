package av

import (
	"context"
	"fmt"
	"io"
	"time"
)

// FLV tag types, shared by the FLV reader and the archive writer.
const (
	TAG_AUDIO          = 8
	TAG_VIDEO          = 9
	TAG_SCRIPTDATAAMF0 = 18
	TAG_SCRIPTDATAAMF3 = 0xf
)

const (
	SOUND_MP3 = 2
	SOUND_AAC = 10

	AAC_SEQHDR = 0
	AAC_RAW    = 1
)

const (
	AVC_SEQHDR = 0
	AVC_NALU   = 1
	AVC_EOS    = 2

	FRAME_KEY   = 1
	FRAME_INTER = 2

	VIDEO_H264 = 7
)

// ContFlag marks how a content packet relates to the one before it.
// The values are the PCP channel packet continuation bits.
type ContFlag byte

const (
	ContNone       ContFlag = 0x00
	ContFragment   ContFlag = 0x01
	ContInterFrame ContFlag = 0x02
	ContAudioFrame ContFlag = 0x04
)

func (f ContFlag) String() string {
	switch f {
	case ContNone:
		return "none"
	case ContFragment:
		return "fragment"
	case ContInterFrame:
		return "interframe"
	case ContAudioFrame:
		return "audioframe"
	}
	return fmt.Sprintf("contflag(%#x)", byte(f))
}

// Content 는 릴레이의 기본 전송 단위이다.
// Header contents carry codec initialization bytes; every other content
// carries the bytes that follow it. Data is always an exact copy of the bytes
// consumed from the source.
type Content struct {
	Stream    int           // 헤더가 바뀔 때마다 새로 발급되는 스트림 번호
	Timestamp time.Duration // 헤더 이후 경과 시간
	Position  int64         // 바이트 위치
	Data      []byte
	ContFlag  ContFlag
}

func (c *Content) String() string {
	return fmt.Sprintf("<stream: %d, ts: %s, pos: %d, len: %d, cont: %s>",
		c.Stream, c.Timestamp, c.Position, len(c.Data), c.ContFlag)
}

// ContentSink receives everything a content reader derives from its source.
// Calls happen synchronously from the reader goroutine.
type ContentSink interface {
	OnChannelInfo(info ChannelInfo)
	OnContentHeader(c *Content)
	OnContent(c *Content)
}

// Channel is the part of a relay channel a content reader is allowed to use.
type Channel interface {
	// GenerateStreamID returns a fresh stream number for a new header.
	GenerateStreamID() int
	// ContentPosition returns the channel-wide byte position of the next content.
	ContentPosition() int64
	// ChannelInfo returns a snapshot of the current channel metadata.
	ChannelInfo() ChannelInfo
}

// ContentReader splits a forward-only byte stream into content packets.
// One reader serves one source session and is not safe for concurrent use.
// Reaching the end of input is not an error; cancellation of ctx is.
type ContentReader interface {
	Name() string
	Read(ctx context.Context, sink ContentSink, r io.Reader) error
}

type ContentReaderFactory interface {
	Name() string
	Create(ch Channel) ContentReader
	// TryDetect inspects a buffered prefix of a source, never the live stream.
	TryDetect(prefix []byte) (contentType, mimeType string, ok bool)
}

// Alive 메서드를 정의합니다
type Alive interface {
	Alive() bool
}

// Closer 메서드를 정의합니다.
type Closer interface {
	Info() Info
	Close(error)
}

// 스트림의 메타데이터를 관리하기 위해 설계된 구조체이다.
type Info struct {
	Key   string // 채널 ID
	URL   string // 요청 URL 혹은 소스 URL
	UID   string // 연결 고유 UID
	Inter bool   // 내부 writer (아카이브 등) 여부
}

func (info Info) IsInterval() bool {
	return info.Inter
}

func (info Info) String() string {
	return fmt.Sprintf("<key: %s, URL: %s, UID: %s, Inter: %v>",
		info.Key, info.URL, info.UID, info.Inter)
}

// 릴레이 채널에서 콘텐츠를 받아가는 쪽(시청자, 아카이브)의 인터페이스
type WriteCloser interface {
	Closer
	Alive
	WriteHeader(*Content) error
	Write(*Content) error
}
