package main

import (
	"context"
	"fmt"
	"net"
	"path"
	"runtime"
	"time"

	"github.com/kumaryu/peercaststation-sub003/configure"
	"github.com/kumaryu/peercaststation-sub003/container"
	"github.com/kumaryu/peercaststation-sub003/protocol/archive"
	"github.com/kumaryu/peercaststation-sub003/protocol/httpstream"
	"github.com/kumaryu/peercaststation-sub003/protocol/relay"
	"github.com/kumaryu/peercaststation-sub003/protocol/source"

	log "github.com/sirupsen/logrus"
)

var VERSION = "master"

func sourceOptions(contentType string, record bool) source.Options {
	opts := source.Options{
		ContentType: contentType,
		DetectSize:  configure.Config.GetInt("detect_size"),
	}
	if record {
		opts.Recorder = archive.NewDvr(configure.Config.GetString("archive_dir"), configure.WriteTimeout())
	}
	return opts
}

func startHTTP(channels *relay.Registry, readers *container.Registry) {
	httpAddr := configure.Config.GetString("http_addr")

	listener, err := net.Listen("tcp", httpAddr)
	if err != nil {
		log.Fatal(err)
	}

	server := httpstream.NewServer(channels, readers, configure.StreamKeys,
		sourceOptions("", configure.Config.GetBool("archive")), configure.WriteTimeout())
	defer func() {
		if r := recover(); r != nil {
			log.Error("HTTP server panic: ", r)
		}
	}()
	log.Info("HTTP listen On ", httpAddr)
	server.Serve(listener)
}

// 설정 파일의 channels 항목마다 채널을 만들고 소스를 계속 당겨온다.
func startPullers(ctx context.Context, channels *relay.Registry, readers *container.Registry) []*source.Puller {
	var pullers []*source.Puller
	for _, c := range configure.GetPullChannels() {
		if c.Name == "" || c.Source == "" {
			log.Warningf("invalid channel config: %+v", c)
			continue
		}
		ch, _ := channels.GetOrCreate(c.Name)
		ch.SetPersistent(true)

		opts := sourceOptions(c.ContentType, c.Archive || configure.Config.GetBool("archive"))
		p := source.NewPuller(readers, ch, c.Name, c.Source, opts)
		p.RetryInterval = configure.RetryInterval()
		if err := p.Start(ctx); err != nil {
			log.Error(err)
			continue
		}
		log.Infof("pull %s from %s", c.Name, c.Source)
		pullers = append(pullers, p)
	}
	return pullers
}

// 택스트 포매터 구조체 포인터를 전달해 로거의 포매터를 설정한다.
// 익명 함수 정의. 호출 함수와 관련된 구조체를 전달 하여 커스터 마이징 함수의 이름과, 파일 이름 및 라인 번호를 반환한다.
func init() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			filename := path.Base(f.File) // 경로에서 마지막 파일 이름 추출.
			return fmt.Sprintf("%s()", f.Function), fmt.Sprintf(" %s:%d", filename, f.Line)
		},
	})
}

func main() {
	// 패닉을 복구하는 지연함수.
	defer func() {
		if r := recover(); r != nil {
			log.Error("peercast panic: ", r)
			time.Sleep(1 * time.Second)
		}
	}()

	log.Infof(`
     ____                ____          _
    |  _ \ ___  ___ _ __/ ___|__ _ ___| |_
    | |_) / _ \/ _ \ '__| |   / _' / __| __|
    |  __/  __/  __/ |  | |__| (_| \__ \ |_
    |_|   \___|\___|_|   \____\__,_|___/\__|
        version: %s
	`, VERSION)

	readers := container.NewRegistry(configure.BitrateWindow())
	channels := relay.NewRegistry(configure.Config.GetInt("content_cache_num"), configure.ReadTimeout())
	channels.SetKeyRevoker(configure.StreamKeys)
	defer channels.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for _, p := range startPullers(ctx, channels, readers) {
		defer p.Stop()
	}

	startHTTP(channels, readers)
}
