package flv

import (
	"fmt"

	"github.com/kumaryu/peercaststation-sub003/av"
	"github.com/kumaryu/peercaststation-sub003/utils/pio"
)

const (
	fileHeaderLen  = 13 // 9 바이트 헤더 + PreviousTagSize0
	tagHeaderLen   = 11
	prevTagSizeLen = 4
)

var signature = []byte("FLV")

// validFileHeader 는 FLV 파일 헤더인지 확인한다. 버전 1, PreviousTagSize0 은 항상 0.
func validFileHeader(b []byte) bool {
	return len(b) >= fileHeaderLen &&
		b[0] == 'F' && b[1] == 'L' && b[2] == 'V' &&
		b[3] == 1 &&
		pio.U32BE(b[9:13]) == 0
}

// flv 태그 헤더 구조체
type flvTag struct {
	fType     uint8  // 비디오 0x09, 오디오 0x08, 메타데이터 0x12
	filter    bool   // 암호화 여부. 릴레이는 그대로 전달한다.
	dataSize  uint32 // 바디 데이터의 크기
	timeStamp uint32 // 태그 데이터의 재생 시점 (확장 바이트 포함)
	streamID  uint32 // always 0
}

type mediaTag struct {
	soundFormat   uint8 // 2 = MP3, 10 = AAC
	soundRate     uint8 // 0 = 5.5kHz, 1 = 11kHz, 2 = 22kHz, 3 = 44kHz
	soundSize     uint8 // 0 = 8bit, 1 = 16bit
	soundType     uint8 // 0 = mono, 1 = stereo
	aacPacketType uint8 // 0 = AAC sequence header, 1 = AAC raw

	/*
		1: keyframe, 독립적으로 디코딩이 가능한 프레임
		2: inter frame, 이전 프레임에 의존
		3: disposable inter frame (H.263 only)
		4: generated keyframe
		5: video info/command frame
	*/
	frameType     uint8
	codecID       uint8 // 7 = AVC
	avcPacketType uint8 // 0 = sequence header, 1 = NALU, 2 = end of sequence

	compositionTime int32 // PTS - DTS
}

// Tag 는 하나의 FLV 태그이다. Raw 는 태그 헤더, 바디, PreviousTagSize 를 읽은 그대로 담는다.
type Tag struct {
	flvt   flvTag
	mediat mediaTag
	Body   []byte
	Raw    []byte
}

// parseTagHeader 는 11 바이트 태그 헤더를 파싱한다. 예약 비트, 태그 타입, 스트림 ID 를 검사한다.
func parseTagHeader(b []byte) (*Tag, bool) {
	if len(b) < tagHeaderLen || b[0]&0xc0 != 0 {
		return nil, false
	}
	tag := &Tag{}
	tag.flvt.fType = b[0] & 0x1f
	tag.flvt.filter = b[0]&0x20 != 0
	tag.flvt.dataSize = pio.U24BE(b[1:4])
	tag.flvt.timeStamp = pio.U24BE(b[4:7]) | uint32(b[7])<<24
	tag.flvt.streamID = pio.U24BE(b[8:11])
	switch tag.flvt.fType {
	case av.TAG_AUDIO, av.TAG_VIDEO, av.TAG_SCRIPTDATAAMF0:
	default:
		return nil, false
	}
	if tag.flvt.streamID != 0 {
		return nil, false
	}
	return tag, true
}

func (tag *Tag) Type() uint8 {
	return tag.flvt.fType
}

func (tag *Tag) DataSize() uint32 {
	return tag.flvt.dataSize
}

func (tag *Tag) TimeStamp() uint32 {
	return tag.flvt.timeStamp
}

func (tag *Tag) IsVideo() bool {
	return tag.flvt.fType == av.TAG_VIDEO
}

func (tag *Tag) IsAudio() bool {
	return tag.flvt.fType == av.TAG_AUDIO
}

func (tag *Tag) IsScript() bool {
	return tag.flvt.fType == av.TAG_SCRIPTDATAAMF0
}

func (tag *Tag) SoundFormat() uint8 {
	return tag.mediat.soundFormat
}

func (tag *Tag) AACPacketType() uint8 {
	return tag.mediat.aacPacketType
}

func (tag *Tag) IsKeyFrame() bool {
	return tag.mediat.frameType == av.FRAME_KEY
}

// IsSeq 는 AVC sequence header 인지 확인한다.
func (tag *Tag) IsSeq() bool {
	return tag.mediat.frameType == av.FRAME_KEY &&
		tag.mediat.codecID == av.VIDEO_H264 &&
		tag.mediat.avcPacketType == av.AVC_SEQHDR
}

// IsAACSeq 는 AAC sequence header 인지 확인한다.
func (tag *Tag) IsAACSeq() bool {
	return tag.mediat.soundFormat == av.SOUND_AAC &&
		tag.mediat.aacPacketType == av.AAC_SEQHDR
}

func (tag *Tag) CodecID() uint8 {
	return tag.mediat.codecID
}

func (tag *Tag) CompositionTime() int32 {
	return tag.mediat.compositionTime
}

// ParseMediaTagHeader, parse video, audio, tag header
func (tag *Tag) ParseMediaTagHeader(b []byte, isVideo bool) (n int, err error) {
	switch isVideo {
	case false:
		n, err = tag.parseAudioHeader(b)
	case true:
		n, err = tag.parseVideoHeader(b)
	}
	return
}

// FLV 오디오 태그 헤더를 파싱하여 오디오 데이터의 메타 정보를 추출한다.
func (tag *Tag) parseAudioHeader(b []byte) (n int, err error) {
	if len(b) < n+1 {
		err = fmt.Errorf("invalid audiodata len=%d", len(b))
		return
	}
	flags := b[0]
	tag.mediat.soundFormat = flags >> 4
	tag.mediat.soundRate = (flags >> 2) & 0x3
	tag.mediat.soundSize = (flags >> 1) & 0x1
	tag.mediat.soundType = flags & 0x1
	n++

	// AAC 일 경우에만 PacketType 이 있다.
	if tag.mediat.soundFormat == av.SOUND_AAC {
		if len(b) < n+1 {
			err = fmt.Errorf("invalid aac audiodata len=%d", len(b))
			return
		}
		tag.mediat.aacPacketType = b[1]
		n++
	}
	return
}

// FLV 비디오 태그 헤더를 파싱하여 비디오 데이터의 메타정보를 추출한다.
func (tag *Tag) parseVideoHeader(b []byte) (n int, err error) {
	if len(b) < n+1 {
		err = fmt.Errorf("invalid videodata len=%d", len(b))
		return
	}
	flags := b[0]
	tag.mediat.frameType = flags >> 4
	tag.mediat.codecID = flags & 0xf
	n++
	// AVC 만 packet type 과 composition time 을 가진다.
	if tag.mediat.codecID == av.VIDEO_H264 &&
		(tag.mediat.frameType == av.FRAME_INTER || tag.mediat.frameType == av.FRAME_KEY) {
		if len(b) < n+4 {
			err = fmt.Errorf("invalid avc videodata len=%d", len(b))
			return
		}
		tag.mediat.avcPacketType = b[1]
		for i := 2; i < 5; i++ {
			tag.mediat.compositionTime = tag.mediat.compositionTime<<8 + int32(b[i])
		}
		n += 4
	}
	return
}
