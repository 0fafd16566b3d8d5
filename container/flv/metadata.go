package flv

import (
	"bytes"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	amf0 "github.com/yutopp/go-amf0"
)

const onMetaData = "onMetaData"

// MetaData is the part of onMetaData the relay cares about. Rates are kbps.
type MetaData struct {
	Duration      float64 `mapstructure:"duration"`
	Width         float64 `mapstructure:"width"`
	Height        float64 `mapstructure:"height"`
	FrameRate     float64 `mapstructure:"framerate"`
	VideoDataRate float64 `mapstructure:"videodatarate"`
	AudioDataRate float64 `mapstructure:"audiodatarate"`
}

func (m MetaData) Bitrate() int {
	return int(m.VideoDataRate + m.AudioDataRate)
}

// parseScriptData decodes the handler name and the first argument of a
// script data tag body.
func parseScriptData(body []byte) (string, interface{}, error) {
	dec := amf0.NewDecoder(bytes.NewReader(body))
	var name string
	if err := dec.Decode(&name); err != nil {
		return "", nil, errors.Wrap(err, "script data name")
	}
	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return name, nil, errors.Wrapf(err, "script data %s", name)
	}
	return name, value, nil
}

// decodeMetaData maps an onMetaData object or ECMA array onto MetaData.
// Numbers sent as strings are accepted.
func decodeMetaData(value interface{}) (MetaData, error) {
	var meta MetaData
	if err := mapstructure.WeakDecode(value, &meta); err != nil {
		return meta, errors.Wrap(err, "onMetaData")
	}
	return meta, nil
}
