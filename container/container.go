// Package container registers every content reader factory and picks one
// for a source.
package container

import (
	"strings"
	"time"

	"github.com/kumaryu/peercaststation-sub003/av"
	"github.com/kumaryu/peercaststation-sub003/container/asf"
	"github.com/kumaryu/peercaststation-sub003/container/flv"
	"github.com/kumaryu/peercaststation-sub003/container/mkv"
	"github.com/kumaryu/peercaststation-sub003/container/raw"
)

type Registry struct {
	factories []av.ContentReaderFactory
	aliases   map[string]av.ContentReaderFactory
}

// NewRegistry registers the built-in factories. bitrateWindow configures the
// Matroska bitrate estimate; zero keeps the default.
func NewRegistry(bitrateWindow time.Duration) *Registry {
	asfFactory := asf.NewFactory()
	mkvFactory := mkv.NewFactory()
	mkvFactory.BitrateWindow = bitrateWindow
	flvFactory := flv.NewFactory()
	rawFactory := raw.NewFactory()

	r := &Registry{aliases: map[string]av.ContentReaderFactory{}}
	r.Add(asfFactory, asf.ContentTypeWMV, asf.ContentTypeWMA, asf.ContentTypeASF)
	r.Add(mkvFactory, mkv.ContentTypeMKV, mkv.ContentTypeWEBM)
	r.Add(flvFactory, flv.ContentType)
	r.Add(rawFactory, raw.ContentType)
	return r
}

// Add registers f under its name and the given content types. Factories are
// tried in the order they were added.
func (r *Registry) Add(f av.ContentReaderFactory, contentTypes ...string) {
	r.factories = append(r.factories, f)
	r.aliases[strings.ToUpper(f.Name())] = f
	for _, t := range contentTypes {
		r.aliases[strings.ToUpper(t)] = f
	}
}

func (r *Registry) Factories() []av.ContentReaderFactory {
	return r.factories
}

// Find looks a factory up by factory name or content type, ignoring case.
func (r *Registry) Find(name string) (av.ContentReaderFactory, bool) {
	f, ok := r.aliases[strings.ToUpper(strings.TrimSpace(name))]
	return f, ok
}

// Detect asks every factory about prefix and returns the first match.
func (r *Registry) Detect(prefix []byte) (av.ContentReaderFactory, string, string, bool) {
	for _, f := range r.factories {
		if contentType, mimeType, ok := f.TryDetect(prefix); ok {
			return f, contentType, mimeType, true
		}
	}
	return nil, "", "", false
}
