package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"mcwatch/pkg/logx"
)

var ErrClosed = errors.New("store closed")

// Document is one collection's content: scope key -> subdocument.
type Document map[string]json.RawMessage

// Clone returns a shallow copy safe for the caller to mutate key-wise.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Config configures the store.
//
// Driver values:
//   - "file" (or empty): one JSON file per collection under Path
//   - "sqlite": single database file at Path (requires the sqlite build tag)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the persistence API used by the watcher.
//
// All methods are whole-document or whole-subdocument operations; there is no
// partial patch. Transaction runs fn under the store's internal lock so a
// read-modify-write cycle cannot interleave with another writer.
type Store interface {
	Read(ctx context.Context, collection string) (Document, error)
	Write(ctx context.Context, collection string, doc Document) error

	GetScoped(ctx context.Context, collection, key string) (json.RawMessage, error)
	SaveScoped(ctx context.Context, collection, key string, sub json.RawMessage) error

	Transaction(ctx context.Context, collection string, fn func(doc Document) (Document, error)) error

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

// Unmarshal decodes a subdocument into out; a nil/empty raw leaves out untouched.
func Unmarshal(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// Marshal encodes v as a subdocument.
func Marshal(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}
