// Package httpstream serves relay channels over HTTP: viewers, push ingest
// and a small JSON API.
package httpstream

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/kumaryu/peercaststation-sub003/av"
	"github.com/kumaryu/peercaststation-sub003/container"
	"github.com/kumaryu/peercaststation-sub003/protocol/relay"
	"github.com/kumaryu/peercaststation-sub003/protocol/source"
	"github.com/kumaryu/peercaststation-sub003/utils/uid"
)

// KeyStore maps channel names to push keys and back.
type KeyStore interface {
	GetKey(channel string) (string, error)
	GetChannel(key string) (string, error)
	DeleteChannel(channel string) bool
}

type Response struct {
	w      http.ResponseWriter
	Status int         `json:"status"`
	Data   interface{} `json:"data"`
}

func (r *Response) SendJson() (int, error) {
	resp, _ := json.Marshal(r)
	r.w.Header().Set("Content-Type", "application/json")
	r.w.WriteHeader(r.Status)
	return r.w.Write(resp)
}

type Server struct {
	channels     *relay.Registry
	readers      *container.Registry
	keys         KeyStore
	options      source.Options
	writeTimeout time.Duration
	router       *mux.Router
}

func NewServer(channels *relay.Registry, readers *container.Registry, keys KeyStore, opts source.Options, writeTimeout time.Duration) *Server {
	server := &Server{
		channels:     channels,
		readers:      readers,
		keys:         keys,
		options:      opts,
		writeTimeout: writeTimeout,
		router:       mux.NewRouter(),
	}
	server.router.HandleFunc("/stream/{id}", server.handleStream).Methods(http.MethodGet)
	server.router.HandleFunc("/push/{key}", server.handlePush).Methods(http.MethodPost, http.MethodPut)
	server.router.HandleFunc("/api/channels", server.handleChannels).Methods(http.MethodGet)
	server.router.HandleFunc("/api/channels/{id}", server.handleChannel).Methods(http.MethodGet)
	server.router.HandleFunc("/api/keys/{channel}", server.handleKey).Methods(http.MethodGet)
	server.router.HandleFunc("/api/keys/{channel}", server.handleRevoke).Methods(http.MethodDelete)
	return server
}

func (server *Server) Handler() http.Handler {
	return server.router
}

func (server *Server) Serve(listener net.Listener) error {
	return http.Serve(listener, server.router)
}

// GET /stream/{id}: 헤더, 캐시된 콘텐츠, 이후 실시간 콘텐츠를 차례로 보낸다.
func (server *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ch, ok := server.channels.Lookup(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "channel not found", http.StatusNotFound)
		return
	}

	info := av.Info{
		Key: ch.Name(),
		URL: r.RemoteAddr,
		UID: uid.NewId(),
	}
	writer := newStreamWriter(info, server.writeTimeout)
	if err := ch.AddWriter(writer); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer ch.RemoveWriter(info.UID)

	mimeType := ch.ChannelInfo().MIMEType()
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	err := writer.SendPacket(r.Context(), w)
	log.WithFields(log.Fields{
		"channel": ch.Name(),
		"viewer":  info.URL,
	}).Debug("viewer left: ", err)
}

// POST /push/{key}: 요청 본문을 소스로 삼아 채널에 밀어 넣는다.
func (server *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	res := &Response{w: w, Status: http.StatusOK}
	defer res.SendJson()

	name, err := server.keys.GetChannel(mux.Vars(r)["key"])
	if err != nil || name == "" {
		res.Status = http.StatusForbidden
		res.Data = "invalid key"
		return
	}
	ch, _ := server.channels.GetOrCreate(name)

	opts := server.options
	if t := r.URL.Query().Get("type"); t != "" {
		opts.ContentType = t
	}
	info := av.Info{
		Key: name,
		URL: r.RemoteAddr,
		UID: uid.NewId(),
	}
	err = source.Serve(r.Context(), server.readers, ch, info, r.Body, opts)
	switch {
	case err == nil:
		res.Data = ch.Status()
	case errors.Is(err, context.Canceled):
		res.Status = http.StatusConflict
		res.Data = "source replaced"
	default:
		res.Status = http.StatusBadRequest
		res.Data = err.Error()
	}
}

func (server *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	res := &Response{w: w, Status: http.StatusOK}
	defer res.SendJson()

	chans := server.channels.Channels()
	list := make([]relay.Status, 0, len(chans))
	for _, ch := range chans {
		list = append(list, ch.Status())
	}
	res.Data = list
}

func (server *Server) handleChannel(w http.ResponseWriter, r *http.Request) {
	res := &Response{w: w, Status: http.StatusOK}
	defer res.SendJson()

	ch, ok := server.channels.Lookup(mux.Vars(r)["id"])
	if !ok {
		res.Status = http.StatusNotFound
		res.Data = "channel not found"
		return
	}
	res.Data = ch.Status()
}

// GET /api/keys/{channel}: 채널의 푸시 키를 돌려준다. 없으면 만든다.
func (server *Server) handleKey(w http.ResponseWriter, r *http.Request) {
	res := &Response{w: w, Status: http.StatusOK}
	defer res.SendJson()

	channel := mux.Vars(r)["channel"]
	key, err := server.keys.GetKey(channel)
	if err != nil {
		res.Status = http.StatusInternalServerError
		res.Data = err.Error()
		return
	}
	res.Data = map[string]string{
		"channel": channel,
		"key":     key,
	}
}

// DELETE /api/keys/{channel}: 푸시 키를 폐기한다. 다음 GET 에서 새 키가 만들어진다.
func (server *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	res := &Response{w: w, Status: http.StatusOK}
	defer res.SendJson()

	channel := mux.Vars(r)["channel"]
	if !server.keys.DeleteChannel(channel) {
		res.Status = http.StatusNotFound
		res.Data = "key not found"
		return
	}
	res.Data = map[string]string{"channel": channel}
}
