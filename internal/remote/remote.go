// Package remote defines the contract the sync layer relies on for the
// remote durable document store.
package remote

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/julianstephens/quitlog/internal/constants"
	"github.com/julianstephens/quitlog/internal/models"
)

// Document is a stored JSON document addressed by collection and id.
type Document struct {
	Collection string
	ID         string
	Data       json.RawMessage
}

// Store is a document-oriented remote store. PutDocument must be an
// idempotent upsert: the sync layer may deliver the same write more than
// once. DeleteDocument of a missing id succeeds.
type Store interface {
	PutDocument(ctx context.Context, collection, id string, data json.RawMessage) error
	DeleteDocument(ctx context.Context, collection, id string) error
	GetDocument(ctx context.Context, collection, id string) (json.RawMessage, bool, error)
	// QueryDocuments returns every document in collection whose top-level
	// string fields equal each entry of filter. A nil filter matches all.
	QueryDocuments(ctx context.Context, collection string, filter map[string]string) ([]Document, error)
	Ping(ctx context.Context) error
	Close() error
}

// Collection returns the collection path for an owner's store,
// e.g. "users/u1/events".
func Collection(owner string, store models.StoreName) string {
	return strings.Join([]string{constants.RemoteCollectionRoot, owner, string(store)}, "/")
}

// Matches reports whether a JSON object satisfies an equality filter on its
// top-level fields. Non-string fields are compared by their JSON text.
func Matches(data json.RawMessage, filter map[string]string) bool {
	if len(filter) == 0 {
		return true
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return false
	}
	for key, want := range filter {
		raw, ok := fields[key]
		if !ok {
			return false
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s != want {
				return false
			}
			continue
		}
		if string(raw) != want {
			return false
		}
	}
	return true
}
