package uid

import (
	"encoding/base64"

	uuid "github.com/satori/go.uuid"
)

// NewId returns a short url-safe random identifier.
func NewId() string {
	id := uuid.NewV4()
	return base64.URLEncoding.EncodeToString(id.Bytes()[:12])
}
