// Package memory is an in-process remote.Store used for offline demos and
// tests. Failures can be injected globally or per document id.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/julianstephens/quitlog/internal/remote"
)

// ErrInjected is returned by calls that hit an injected failure.
var ErrInjected = errors.New("injected remote failure")

// Call records one mutating request made against the store.
type Call struct {
	Method     string
	Collection string
	ID         string
}

type Store struct {
	mu       sync.Mutex
	docs     map[string]map[string]json.RawMessage
	failAll  bool
	failFor  map[string]bool
	calls    []Call
	closed   bool
	pingFail bool
}

func New() *Store {
	return &Store{
		docs:    make(map[string]map[string]json.RawMessage),
		failFor: make(map[string]bool),
	}
}

// FailAll makes every call fail until cleared.
func (s *Store) FailAll(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAll = fail
	s.pingFail = fail
}

// FailFor makes writes and deletes of the given document id fail.
func (s *Store) FailFor(id string, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fail {
		s.failFor[id] = true
	} else {
		delete(s.failFor, id)
	}
}

// Calls returns a copy of the mutating calls seen so far, in order.
func (s *Store) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Len returns the number of documents held in a collection.
func (s *Store) Len(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs[collection])
}

func (s *Store) check(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed {
		return errors.New("memory store is closed")
	}
	if s.failAll || (id != "" && s.failFor[id]) {
		return ErrInjected
	}
	return nil
}

func (s *Store) PutDocument(ctx context.Context, collection, id string, data json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: "put", Collection: collection, ID: id})
	if err := s.check(ctx, id); err != nil {
		return err
	}
	if !json.Valid(data) {
		return errors.New("document is not valid JSON")
	}
	coll, ok := s.docs[collection]
	if !ok {
		coll = make(map[string]json.RawMessage)
		s.docs[collection] = coll
	}
	coll[id] = append(json.RawMessage(nil), data...)
	return nil
}

func (s *Store) DeleteDocument(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: "delete", Collection: collection, ID: id})
	if err := s.check(ctx, id); err != nil {
		return err
	}
	delete(s.docs[collection], id)
	return nil
}

func (s *Store) GetDocument(ctx context.Context, collection, id string) (json.RawMessage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, ""); err != nil {
		return nil, false, err
	}
	data, ok := s.docs[collection][id]
	if !ok {
		return nil, false, nil
	}
	return append(json.RawMessage(nil), data...), true, nil
}

func (s *Store) QueryDocuments(ctx context.Context, collection string, filter map[string]string) ([]remote.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, ""); err != nil {
		return nil, err
	}
	docs := []remote.Document{}
	for id, data := range s.docs[collection] {
		if remote.Matches(data, filter) {
			docs = append(docs, remote.Document{
				Collection: collection,
				ID:         id,
				Data:       append(json.RawMessage(nil), data...),
			})
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed || s.pingFail {
		return ErrInjected
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ remote.Store = (*Store)(nil)
