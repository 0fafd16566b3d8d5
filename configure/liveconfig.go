package configure

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/kr/pretty"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

/*
{
  "channels": [
    {
      "name": "live",
      "source": "http://example.com/live.webm",
      "content_type": "",
      "archive": false
    }
  ]
}
*/

// 서버 시작 시 미리 만들어 두고 계속 당겨오는(pull) 채널 설정이다.
// content_type 이 비어 있으면 소스 앞부분을 보고 형식을 판별한다.
type PullChannel struct {
	Name        string `mapstructure:"name"`
	Source      string `mapstructure:"source"`
	ContentType string `mapstructure:"content_type"`
	Archive     bool   `mapstructure:"archive"`
}

type PullChannels []PullChannel

type ServerCfg struct {
	Level           string       `mapstructure:"level"`
	ConfigFile      string       `mapstructure:"config_file"`
	HTTPAddr        string       `mapstructure:"http_addr"`
	RedisAddr       string       `mapstructure:"redis_addr"`
	RedisPwd        string       `mapstructure:"redis_pwd"`
	ReadTimeout     int          `mapstructure:"read_timeout"`
	WriteTimeout    int          `mapstructure:"write_timeout"`
	ContentCacheNum int          `mapstructure:"content_cache_num"`
	DetectSize      int          `mapstructure:"detect_size"`
	RetryInterval   int          `mapstructure:"retry_interval"`
	BitrateWindow   int          `mapstructure:"bitrate_window"`
	Archive         bool         `mapstructure:"archive"`
	ArchiveDir      string       `mapstructure:"archive_dir"`
	Channels        PullChannels `mapstructure:"channels"`
}

// default config
var defaultConf = ServerCfg{
	Level:           "info",
	ConfigFile:      "peercast.yaml",
	HTTPAddr:        ":7144",
	WriteTimeout:    10,
	ReadTimeout:     10,
	ContentCacheNum: 100,
	DetectSize:      8192,
	RetryInterval:   5,
	BitrateWindow:   30,
	Archive:         false,
	ArchiveDir:      "archive",
	Channels:        PullChannels{},
}

var (
	Config = viper.New() // Viper 설정 객체를 새로 생성하는 함수이다. *viper.Viper 객체를 반환하며, 설정값 관리에 사용된다.

	// BypassInit can be used to bypass the init() function by setting this
	// value to True at compile time.
	// 컴파일시 링커 플래그를 통해 특정 설정을 추가한다. 패키지 로드시 생성자를 실행하지 않도록한다.
	// go build -ldflags "-X 'github.com/kumaryu/peercaststation-sub003/configure.BypassInit=true'" -o peercast main.go
	BypassInit string = ""
)

func initLog() {
	if l, err := log.ParseLevel(Config.GetString("level")); err == nil {
		log.SetLevel(l)
		log.SetReportCaller(l == log.DebugLevel)
	}
}

func init() {
	if BypassInit == "" {
		initDefault()
	}
}

// InitDefault loads only the built-in defaults, without flags, config file
// or environment.
func InitDefault() {
	loadDefaults()
	initLog()
	Init()
}

func loadDefaults() {
	b, _ := json.Marshal(defaultConf)
	defaultConfig := bytes.NewReader(b)
	v := viper.New()
	v.SetConfigType("json")
	v.ReadConfig(defaultConfig)
	Config.MergeConfigMap(v.AllSettings())
}

func initDefault() {
	defer Init()

	// Default config
	loadDefaults()

	// Flags
	// p flag는 POSIX 스타일 플래그를 파싱하고, 사용하는 법을 정의한다.P가 없는 메서드의 경우에는 긴 형식 플래그만 지원한다.
	pflag.String("http_addr", ":7144", "HTTP server listen address")
	pflag.String("config_file", "peercast.yaml", "configure filename")
	pflag.String("level", "info", "Log level")
	pflag.String("redis_addr", "", "redis address for shared stream keys")
	pflag.String("redis_pwd", "", "redis password")
	pflag.Int("read_timeout", 10, "read time out")
	pflag.Int("write_timeout", 10, "write time out")
	pflag.Int("content_cache_num", 100, "contents kept for late viewers")
	pflag.Int("detect_size", 8192, "bytes buffered for format detection")
	pflag.Int("retry_interval", 5, "seconds between pull retries")
	pflag.Int("bitrate_window", 30, "seconds of clusters used for Matroska bitrate")
	pflag.Bool("archive", false, "record every channel")
	pflag.String("archive_dir", "archive", "output files at archive_dir/NAME_TIME.EXT")
	// 테스트 바이너리처럼 모르는 플래그가 섞여 있어도 무시한다.
	pflag.CommandLine.ParseErrorsWhitelist.UnknownFlags = true
	pflag.Parse()
	Config.BindPFlags(pflag.CommandLine)

	// File
	Config.SetConfigFile(Config.GetString("config_file"))
	Config.AddConfigPath(".")
	err := Config.ReadInConfig()
	if err != nil {
		log.Warning(err)
		log.Info("Using default config")
	} else {
		Config.MergeInConfig()
	}

	// Environment
	replacer := strings.NewReplacer(".", "_")
	Config.SetEnvKeyReplacer(replacer)
	Config.AllowEmptyEnv(true)
	Config.AutomaticEnv()

	// Log
	initLog()

	// Print final config
	c := ServerCfg{}
	Config.Unmarshal(&c)
	log.Debugf("Current configurations: \n%# v", pretty.Formatter(c))
}

func seconds(key string) time.Duration {
	return time.Duration(Config.GetInt(key)) * time.Second
}

func ReadTimeout() time.Duration {
	return seconds("read_timeout")
}

func WriteTimeout() time.Duration {
	return seconds("write_timeout")
}

func RetryInterval() time.Duration {
	return seconds("retry_interval")
}

func BitrateWindow() time.Duration {
	return seconds("bitrate_window")
}

func GetPullChannels() PullChannels {
	chans := PullChannels{}
	Config.UnmarshalKey("channels", &chans)
	return chans
}
