package av

import (
	"strconv"
)

// Well-known channel metadata keys.
const (
	InfoBitrate          = "bitrate"
	InfoContentType      = "type"
	InfoMIMEType         = "mime"
	InfoContentExtension = "ext"
	InfoName             = "name"
)

// ChannelInfo is an open key/value bag of channel metadata.
// Later writes overwrite earlier ones.
type ChannelInfo map[string]string

func NewChannelInfo() ChannelInfo {
	return ChannelInfo{}
}

func (info ChannelInfo) Clone() ChannelInfo {
	c := make(ChannelInfo, len(info))
	for k, v := range info {
		c[k] = v
	}
	return c
}

// Merge overwrites info with every value of other.
func (info ChannelInfo) Merge(other ChannelInfo) {
	for k, v := range other {
		info[k] = v
	}
}

// Bitrate is in kbps, zero when unknown.
func (info ChannelInfo) Bitrate() int {
	v, err := strconv.Atoi(info[InfoBitrate])
	if err != nil {
		return 0
	}
	return v
}

func (info ChannelInfo) SetBitrate(kbps int) {
	info[InfoBitrate] = strconv.Itoa(kbps)
}

func (info ChannelInfo) ContentType() string {
	return info[InfoContentType]
}

func (info ChannelInfo) SetContentType(v string) {
	info[InfoContentType] = v
}

func (info ChannelInfo) MIMEType() string {
	return info[InfoMIMEType]
}

func (info ChannelInfo) SetMIMEType(v string) {
	info[InfoMIMEType] = v
}

func (info ChannelInfo) ContentExtension() string {
	return info[InfoContentExtension]
}

func (info ChannelInfo) SetContentExtension(v string) {
	info[InfoContentExtension] = v
}

func (info ChannelInfo) Name() string {
	return info[InfoName]
}

func (info ChannelInfo) SetName(v string) {
	info[InfoName] = v
}

// SetContent writes the content type, MIME type and extension at once.
func (info ChannelInfo) SetContent(contentType, mimeType, ext string) {
	info.SetContentType(contentType)
	info.SetMIMEType(mimeType)
	info.SetContentExtension(ext)
}
