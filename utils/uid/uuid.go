package uid

import (
	"encoding/base64"

	uuid "github.com/satori/go.uuid"
)

// NewId returns a short url-safe unique id.
func NewId() string {
	id := uuid.NewV4()
	b64 := base64.URLEncoding.EncodeToString(id.Bytes()[:12])
	return b64
}
