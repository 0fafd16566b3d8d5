// Package archive records the packets of a channel to files.
package archive

/*
채널의 헤더와 콘텐츠를 받은 그대로 파일에 기록한다.
콘텐츠는 원본 바이트 그대로이므로 헤더 + 콘텐츠를 이어 쓰면 재생 가능한 파일이 된다.
새 스트림(헤더)이 오면 새 파일로 넘어간다.
*/
import (
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/kumaryu/peercaststation-sub003/av"
	"github.com/kumaryu/peercaststation-sub003/utils/uid"
)

const defaultExt = ".dat"

var fileSafe = strings.NewReplacer("/", "_", "\\", "_", ":", "_")

type Writer struct {
	Uid        string
	av.RWBaser // 마지막 기록 시각
	name, url  string
	channel    av.Channel
	create     func(ext string) (io.WriteCloser, string, error)

	lock         sync.Mutex
	ctx          io.WriteCloser // 현재 기록 중인 파일
	fileName     string
	files        []string
	stream       int
	closed       chan struct{}
	closedWriter bool
}

func NewWriter(ch av.Channel, name, url string, timeout time.Duration, create func(ext string) (io.WriteCloser, string, error)) *Writer {
	return &Writer{
		Uid:     uid.NewId(),
		RWBaser: av.NewRWBaser(timeout),
		name:    name,
		url:     url,
		channel: ch,
		create:  create,
		closed:  make(chan struct{}),
	}
}

// WriteHeader starts a new file for every new stream.
func (writer *Writer) WriteHeader(c *av.Content) error {
	writer.RecContent(c)
	writer.lock.Lock()
	defer writer.lock.Unlock()
	if writer.closedWriter {
		return io.ErrClosedPipe
	}
	if writer.ctx != nil && writer.stream == c.Stream {
		return nil
	}
	writer.closeFile()

	ext := writer.channel.ChannelInfo().ContentExtension()
	if ext == "" {
		ext = defaultExt
	}
	w, fileName, err := writer.create(ext)
	if err != nil {
		return err
	}
	writer.ctx = w
	writer.fileName = fileName
	writer.files = append(writer.files, fileName)
	writer.stream = c.Stream
	log.WithFields(log.Fields{
		"channel": writer.name,
		"stream":  c.Stream,
		"file":    fileName,
	}).Info("archive started")

	_, err = writer.ctx.Write(c.Data)
	return errors.Wrap(err, "write header")
}

// Write appends a content of the current stream. Contents of other streams
// are skipped.
func (writer *Writer) Write(c *av.Content) error {
	writer.RecContent(c)
	writer.lock.Lock()
	defer writer.lock.Unlock()
	if writer.closedWriter {
		return io.ErrClosedPipe
	}
	if writer.ctx == nil || c.Stream != writer.stream {
		return nil
	}
	_, err := writer.ctx.Write(c.Data)
	return errors.Wrap(err, "write content")
}

func (writer *Writer) closeFile() {
	if writer.ctx == nil {
		return
	}
	if err := writer.ctx.Close(); err != nil {
		log.Warnf("close %s: %v", writer.fileName, err)
	}
	writer.ctx = nil
}

// 이 메서드는 닫힌 채널이 신호를 받을때까지 블로킹된다.
func (writer *Writer) Wait() {
	<-writer.closed
}

// 여러번 닫히는 것을 방지하기 위해 불리안을 사용한다.
func (writer *Writer) Close(err error) {
	writer.lock.Lock()
	defer writer.lock.Unlock()
	if writer.closedWriter {
		return
	}
	writer.closedWriter = true
	writer.closeFile()
	close(writer.closed)
	log.WithField("channel", writer.name).Debug("archive closed: ", err)
}

// Files returns every file this writer has started.
func (writer *Writer) Files() []string {
	writer.lock.Lock()
	defer writer.lock.Unlock()
	return append([]string(nil), writer.files...)
}

func (writer *Writer) Info() (ret av.Info) {
	ret.UID = writer.Uid
	ret.URL = writer.url
	ret.Key = writer.name
	ret.Inter = true
	return
}

// digital video recorder.
// 채널마다 writer 를 만들어주는 팩토리 역할을 한다.
type Dvr struct {
	Dir     string
	Timeout time.Duration
	now     func() time.Time
}

func NewDvr(dir string, timeout time.Duration) *Dvr {
	return &Dvr{
		Dir:     dir,
		Timeout: timeout,
		now:     time.Now,
	}
}

// GetWriter returns a writer recording ch to Dir/<name>_<unix><ext>.
// Files are created when a header arrives.
func (d *Dvr) GetWriter(ch av.Channel, name, url string) (av.WriteCloser, error) {
	if err := os.MkdirAll(d.Dir, 0755); err != nil {
		return nil, errors.Wrap(err, "mkdir")
	}
	create := func(ext string) (io.WriteCloser, string, error) {
		base := fmt.Sprintf("%s_%d", path.Join(d.Dir, fileSafe.Replace(name)), d.now().Unix())
		fileName := base + ext
		// 같은 초에 스트림이 바뀌면 덮어쓰지 않도록 번호를 붙인다.
		for i := 1; exists(fileName); i++ {
			fileName = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		f, err := os.OpenFile(fileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return nil, "", errors.Wrap(err, "open archive")
		}
		return f, fileName, nil
	}
	writer := NewWriter(ch, name, url, d.Timeout, create)
	log.Debug("new archive: ", writer.Info())
	return writer, nil
}

func exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}
