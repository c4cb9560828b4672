// Package cache stores derived artifacts (token lists, tree snapshots,
// metric maps) keyed by artifact type and id and validated by a content hash.
package cache

import (
	"encoding/json"
	"fmt"
	"github.com/tvbeek/pdepend/internal/core/errors"
	"strings"

	"github.com/gobwas/glob"
)

// Artifact types.
const (
	TypeTokens  = "tokens"
	TypeAST     = "ast"
	TypeMetrics = "metrics"
)

// ErrMiss is returned by Restore when no entry with a matching hash exists.
var ErrMiss = errors.New(errors.CodeCacheMiss, "cache miss")

type Key struct {
	Type string
	ID   string
}

func (k Key) String() string {
	return k.Type + "/" + k.ID
}

// Driver is a persistent or in-memory key/value store. Implementations are
// safe for concurrent use.
type Driver interface {
	Store(key Key, value []byte, hash string) error
	// Restore returns ErrMiss when the key is absent or stored under a
	// different hash.
	Restore(key Key, hash string) ([]byte, error)
	// Remove deletes every entry whose "<type>/<id>" matches the glob pattern.
	Remove(pattern string) error
	Close() error
}

// IsMiss reports whether err means "recompute".
func IsMiss(err error) bool {
	return errors.IsCode(err, errors.CodeCacheMiss) || errors.IsCode(err, errors.CodeCorruptCache)
}

// envelope is the serialized form used by drivers that keep the hash next to
// the payload.
type envelope struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Hash  string `json:"hash"`
	Value []byte `json:"value"`
}

func encodeEnvelope(key Key, value []byte, hash string) ([]byte, error) {
	data, err := json.Marshal(envelope{Type: key.Type, ID: key.ID, Hash: hash, Value: value})
	if err != nil {
		return nil, fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	return data, nil
}

func decodeEnvelope(data []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return envelope{}, errors.Wrap(err, errors.CodeCorruptCache, "decode cache entry")
	}
	return env, nil
}

func compilePattern(pattern string) (glob.Glob, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		pattern = "**"
	}
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, fmt.Sprintf("invalid cache pattern %q", pattern))
	}
	return g, nil
}
