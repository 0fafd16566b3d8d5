package configure // 설정 관련 패키지

/*
	각 채널은 푸시(POST /push/{key})용 고유 키를 가진다.
	key:<키> -> 채널 이름, channel:<채널 이름> -> 키 두 방향으로 저장해서
	키와 채널 이름이 같은 문자열이어도 서로 섞이지 않는다.
	redis_addr 가 있으면 redis 에 저장해서 여러 인스턴스가 같은 키를 쓰고,
	없으면 프로세스 안의 go-cache 에 저장한다.
*/
import (
	"fmt"

	"github.com/kumaryu/peercaststation-sub003/utils/uid"

	"github.com/go-redis/redis/v7"
	"github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"
)

const (
	keyPrefix     = "key:"
	channelPrefix = "channel:"
	keyLength     = 48
)

type StreamKeysType struct {
	redisCli   *redis.Client // 레디스 클라이언트
	localCache *cache.Cache  // 로컬 캐시
}

var StreamKeys = &StreamKeysType{
	localCache: cache.New(cache.NoExpiration, 0),
}

var saveInLocal = true // 초기 설정 True

func Init() {
	saveInLocal = len(Config.GetString("redis_addr")) == 0
	if saveInLocal {
		return
	} // 레디스 설정 확인한다.

	StreamKeys.redisCli = redis.NewClient(&redis.Options{
		Addr:     Config.GetString("redis_addr"),
		Password: Config.GetString("redis_pwd"),
		DB:       0,
	})

	_, err := StreamKeys.redisCli.Ping().Result()
	if err != nil {
		log.Panic("Redis: ", err)
	}

	log.Info("Redis connected")
}

func (r *StreamKeysType) get(k string) (string, bool, error) {
	if !saveInLocal {
		v, err := r.redisCli.Get(k).Result()
		switch {
		case err == redis.Nil:
			return "", false, nil
		case err != nil:
			return "", false, err
		}
		return v, true, nil
	}
	v, found := r.localCache.Get(k)
	if !found {
		return "", false, nil
	}
	return v.(string), true, nil
}

func (r *StreamKeysType) set(k, v string) error {
	if !saveInLocal {
		return r.redisCli.Set(k, v, 0).Err()
	}
	r.localCache.SetDefault(k, v)
	return nil
}

func (r *StreamKeysType) del(ks ...string) error {
	if !saveInLocal {
		return r.redisCli.Del(ks...).Err()
	}
	for _, k := range ks {
		r.localCache.Delete(k)
	}
	return nil
}

// SetKey gives channel a fresh random key. The previous key stops working.
func (r *StreamKeysType) SetKey(channel string) (string, error) {
	old, found, err := r.get(channelPrefix + channel)
	if err != nil {
		return "", err
	}
	if found {
		r.DeleteKey(old)
	}

	// 쓰이지 않는 키가 나올 때까지 반복한다.
	for {
		key := uid.RandStringRunes(keyLength)
		_, taken, err := r.get(keyPrefix + key)
		if err != nil {
			return "", err
		}
		if taken {
			continue
		}
		if err := r.set(keyPrefix+key, channel); err != nil {
			return "", err
		}
		if err := r.set(channelPrefix+channel, key); err != nil {
			return "", err
		}
		return key, nil
	}
}

// GetKey returns the key of channel, creating one when it has none.
func (r *StreamKeysType) GetKey(channel string) (string, error) {
	key, found, err := r.get(channelPrefix + channel)
	if err != nil || found {
		return key, err
	}
	key, err = r.SetKey(channel)
	log.Debugf("[KEY] new channel [%s]: %s", channel, key)
	return key, err
}

// get channel 함수는 키에서 채널 이름을 검색해온다.
func (r *StreamKeysType) GetChannel(key string) (string, error) {
	channel, found, err := r.get(keyPrefix + key)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("%s does not exists", key)
	}
	return channel, nil
}

// 채널의 키를 폐기한다.
func (r *StreamKeysType) DeleteChannel(channel string) bool {
	key, found, err := r.get(channelPrefix + channel)
	if err != nil || !found {
		return false
	}
	return r.del(channelPrefix+channel, keyPrefix+key) == nil
}

// 키를 폐기한다. 채널이 이미 다른 키를 가지고 있으면 그 키는 그대로 둔다.
func (r *StreamKeysType) DeleteKey(key string) bool {
	channel, found, err := r.get(keyPrefix + key)
	if err != nil || !found {
		return false
	}
	ks := []string{keyPrefix + key}
	if cur, ok, _ := r.get(channelPrefix + channel); ok && cur == key {
		ks = append(ks, channelPrefix+channel)
	}
	return r.del(ks...) == nil
}
