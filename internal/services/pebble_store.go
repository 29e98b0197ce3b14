package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/cockroachdb/pebble"
)

const (
	objectDataPrefix = "obj/data/"
	objectTypePrefix = "obj/type/"
)

// PebbleStore keeps uploads in a local Pebble database and serves them
// under publicURL + "/objects/".
type PebbleStore struct {
	db        *pebble.DB
	publicURL string
	maxBytes  int64
}

// OpenPebbleStore opens (or creates) the store in dir. maxBytes <= 0
// disables the size check.
func OpenPebbleStore(dir, publicURL string, maxBytes int64) (*PebbleStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open object store: %w", err)
	}
	return &PebbleStore{db: db, publicURL: strings.TrimRight(publicURL, "/"), maxBytes: maxBytes}, nil
}

func (s *PebbleStore) Put(ctx context.Context, path, contentType string, body io.Reader) (string, error) {
	if path == "" {
		return "", errors.New("empty object path")
	}
	r := body
	if s.maxBytes > 0 {
		r = io.LimitReader(body, s.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		objectsStored.WithLabelValues("pebble", "failed").Inc()
		return "", fmt.Errorf("read object: %w", err)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		objectsStored.WithLabelValues("pebble", "failed").Inc()
		return "", fmt.Errorf("object exceeds %d bytes", s.maxBytes)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set([]byte(objectDataPrefix+path), data, nil); err != nil {
		return "", err
	}
	if err := batch.Set([]byte(objectTypePrefix+path), []byte(contentType), nil); err != nil {
		return "", err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		objectsStored.WithLabelValues("pebble", "failed").Inc()
		return "", fmt.Errorf("store object: %w", err)
	}
	objectsStored.WithLabelValues("pebble", "ok").Inc()
	return path, nil
}

func (s *PebbleStore) URL(ctx context.Context, ref string) (string, error) {
	if _, err := s.get(objectTypePrefix + ref); err != nil {
		return "", err
	}
	segments := strings.Split(ref, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.publicURL + "/objects/" + strings.Join(segments, "/"), nil
}

// Open returns the content type and bytes of ref.
func (s *PebbleStore) Open(ref string) (string, []byte, error) {
	ct, err := s.get(objectTypePrefix + ref)
	if err != nil {
		return "", nil, err
	}
	data, err := s.get(objectDataPrefix + ref)
	if err != nil {
		return "", nil, err
	}
	return string(ct), data, nil
}

func (s *PebbleStore) get(key string) ([]byte, error) {
	val, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), val...), nil
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}
