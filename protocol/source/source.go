// Package source drives content readers: one parse session per source
// connection, bound to a relay channel.
package source

import (
	"bufio"
	"context"
	"io"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/kumaryu/peercaststation-sub003/av"
	"github.com/kumaryu/peercaststation-sub003/container"
	"github.com/kumaryu/peercaststation-sub003/container/raw"
)

const DefaultDetectSize = 8192

var ErrNoFactory = errors.New("no content reader")

// Channel is what a source session needs from a relay channel.
type Channel interface {
	av.Channel
	av.ContentSink
	Name() string
	AddWriter(w av.WriteCloser) error
	StartSource(info av.Info, cancel context.CancelFunc) error
	StopSource(info av.Info)
}

// Recorder supplies an internal writer for every source session.
type Recorder interface {
	GetWriter(ch av.Channel, name, url string) (av.WriteCloser, error)
}

type Options struct {
	// ContentType forces a reader by name or content type. Empty means detect.
	ContentType string
	// DetectSize is how many bytes are buffered for format detection.
	DetectSize int
	// Recorder, if set, records every session.
	Recorder Recorder
}

func (o Options) detectSize() int {
	if o.DetectSize <= 0 {
		return DefaultDetectSize
	}
	return o.DetectSize
}

// Serve runs one parse session reading r into ch. It returns nil when the
// source ends and the context error when the session is cancelled, either
// by ctx or by a newer source taking over the channel.
func Serve(ctx context.Context, reg *container.Registry, ch Channel, info av.Info, r io.Reader, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := ch.StartSource(info, cancel); err != nil {
		return err
	}
	defer ch.StopSource(info)
	if opts.Recorder != nil {
		record(ch, info, opts.Recorder)
	}

	// 블로킹된 Read 는 컨텍스트로 깨울 수 없으므로 연결을 닫는다.
	if closer, ok := r.(io.Closer); ok {
		go func() {
			<-ctx.Done()
			closer.Close()
		}()
	}

	br := bufio.NewReaderSize(av.NewContextReader(ctx, r), opts.detectSize())
	prefix, err := br.Peek(opts.detectSize())
	if err != nil && !av.IsEndOfInput(err) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrap(err, "detect")
	}
	if len(prefix) == 0 {
		log.WithField("source", info.URL).Debug("empty source")
		return nil
	}

	factory, err := selectFactory(reg, prefix, opts.ContentType)
	if err != nil {
		return err
	}
	reader := factory.Create(ch)
	log.WithFields(log.Fields{
		"source": info.URL,
		"uid":    info.UID,
		"reader": reader.Name(),
	}).Info("source started")

	err = reader.Read(ctx, ch, br)
	if ctx.Err() != nil {
		err = ctx.Err()
	}
	log.WithFields(log.Fields{
		"source": info.URL,
		"uid":    info.UID,
	}).Info("source stopped: ", err)
	return err
}

// selectFactory prefers a forced content type, then detection, then RAW.
func selectFactory(reg *container.Registry, prefix []byte, contentType string) (av.ContentReaderFactory, error) {
	if contentType != "" {
		if f, ok := reg.Find(contentType); ok {
			return f, nil
		}
		log.Warnf("unknown content type %q, detecting", contentType)
	}
	if f, contentType, mimeType, ok := reg.Detect(prefix); ok {
		log.Debugf("detected %s (%s) by %s", contentType, mimeType, f.Name())
		return f, nil
	}
	if f, ok := reg.Find(raw.ContentType); ok {
		return f, nil
	}
	return nil, ErrNoFactory
}

func record(ch Channel, info av.Info, rec Recorder) {
	w, err := rec.GetWriter(ch, ch.Name(), info.URL)
	if err != nil {
		log.WithField("channel", ch.Name()).Warn("archive: ", err)
		return
	}
	if err := ch.AddWriter(w); err != nil {
		w.Close(err)
	}
}
