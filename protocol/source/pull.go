package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/kumaryu/peercaststation-sub003/av"
	"github.com/kumaryu/peercaststation-sub003/container"
	"github.com/kumaryu/peercaststation-sub003/utils/uid"
)

const DefaultRetryInterval = 5 * time.Second

// Open returns a byte stream for an http(s) URL, a file URL or a plain path.
func Open(ctx context.Context, client *http.Client, rawurl string) (io.ReadCloser, error) {
	u, err := url.Parse(rawurl)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// 스킴이 없거나 윈도우 드라이브 문자라면 파일 경로로 본다.
		return openFile(rawurl)
	}
	switch strings.ToLower(u.Scheme) {
	case "file":
		return openFile(u.Path)
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
		if err != nil {
			return nil, errors.Wrap(err, "request")
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, errors.Wrapf(err, "get %s", rawurl)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("get %s: %s", rawurl, resp.Status)
		}
		return resp.Body, nil
	}
	return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
}

func openFile(name string) (io.ReadCloser, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrap(err, "open file")
	}
	return f, nil
}

// Puller keeps a channel fed from a URL, reconnecting after the source ends
// or fails until it is stopped.
type Puller struct {
	URL           string
	Options       Options
	RetryInterval time.Duration
	Client        *http.Client

	registry  *container.Registry
	channel   Channel
	key       string
	lock      sync.Mutex
	startflag bool
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewPuller(reg *container.Registry, ch Channel, key, rawurl string, opts Options) *Puller {
	return &Puller{
		URL:           rawurl,
		Options:       opts,
		RetryInterval: DefaultRetryInterval,
		Client:        http.DefaultClient,
		registry:      reg,
		channel:       ch,
		key:           key,
	}
}

func (p *Puller) Start(ctx context.Context) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.startflag {
		return fmt.Errorf("puller already started, url=%s", p.URL)
	}
	ctx, cancel := context.WithCancel(ctx)
	p.startflag = true
	p.cancel = cancel
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		p.run(ctx)
	}()
	return nil
}

// Stop cancels the running session and waits for the pull loop to exit.
func (p *Puller) Stop() {
	p.lock.Lock()
	if !p.startflag {
		p.lock.Unlock()
		log.Debugf("puller already stopped, url=%s", p.URL)
		return
	}
	p.startflag = false
	p.cancel()
	done := p.done
	p.lock.Unlock()
	<-done
}

func (p *Puller) run(ctx context.Context) {
	interval := p.RetryInterval
	if interval <= 0 {
		interval = DefaultRetryInterval
	}
	for {
		err := p.pullOnce(ctx)
		if ctx.Err() != nil {
			log.Debugf("pull stopped, url=%s", p.URL)
			return
		}
		log.WithFields(log.Fields{
			"url":   p.URL,
			"retry": interval,
		}).Info("pull ended: ", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

func (p *Puller) pullOnce(ctx context.Context) error {
	r, err := Open(ctx, p.Client, p.URL)
	if err != nil {
		return err
	}
	defer r.Close()
	info := av.Info{
		Key: p.key,
		URL: p.URL,
		UID: uid.NewId(),
	}
	return Serve(ctx, p.registry, p.channel, info, r, p.Options)
}
