package localstore

import (
	"context"
	"strings"
)

// Fixed keys under which a browser's session is persisted.
const (
	KeyUser   = "user"
	KeyTokens = "tokens"
)

// Repository is durable key/value storage partitioned by browser id.
// Values are opaque JSON documents.
type Repository interface {
	Get(ctx context.Context, browserID, key string) ([]byte, error)
	Set(ctx context.Context, browserID, key string, value []byte) error
	Delete(ctx context.Context, browserID string, keys ...string) error
	Ping(ctx context.Context) error
}

func validKey(browserID, key string) bool {
	return strings.TrimSpace(browserID) != "" && strings.TrimSpace(key) != ""
}
