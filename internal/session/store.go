package session

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a session ID resolves to nothing, either
// because it never existed or because its TTL elapsed.
var ErrNotFound = errors.New("session not found")

// Store holds live session state as opaque JSON blobs keyed by session ID.
// Implementations expire entries after a TTL; Touch extends the clock on
// activity. The interview layer owns serialization so storage backends stay
// interchangeable.
type Store interface {
	Get(ctx context.Context, id string) ([]byte, error)
	Put(ctx context.Context, id string, data []byte) error
	Delete(ctx context.Context, id string) error
	Touch(ctx context.Context, id string) error
}
