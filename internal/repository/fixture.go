package repository

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"golang-alerting/pkg/cache"
	"golang-alerting/pkg/logger"
	"golang-alerting/pkg/utils"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
)

var (
	ErrFixtureInvalid  = errors.New("invalid fixture")
	ErrInvalidTenantID = errors.New("invalid tenant id")
)

// FixtureError lists every problem found in one fixture file.
type FixtureError struct {
	Path     string
	Problems []string
}

func (e *FixtureError) Error() string {
	return fmt.Sprintf("fixture %s: %s", e.Path, strings.Join(e.Problems, "; "))
}

func (e *FixtureError) Unwrap() error {
	return ErrFixtureInvalid
}

// fixtureLoader reads <dir>/<kind>/<tenant>.json once per cache lifetime.
// Concurrent misses for the same key share one read.
type fixtureLoader struct {
	dir      string
	kind     string
	keyFmt   string
	ttl      time.Duration
	cache    cache.Cache
	validate *validator.Validate
	group    singleflight.Group
	log      *logger.Logger
}

func (l *fixtureLoader) path(tenantID string) string {
	return filepath.Join(l.dir, l.kind, tenantID+".json")
}

// decodeFixture reads path strictly: unknown fields, trailing data and
// tag violations are all errors. A missing file reports found=false.
func decodeFixture(path string, v *validator.Validate, dest interface{}) (found bool, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read fixture %s: %w", path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return true, &FixtureError{Path: path, Problems: []string{err.Error()}}
	}
	if dec.More() {
		return true, &FixtureError{Path: path, Problems: []string{"unexpected data after fixture document"}}
	}
	if err := v.Struct(dest); err != nil {
		return true, &FixtureError{Path: path, Problems: utils.ValidationMessages(err)}
	}
	return true, nil
}

// loadFixture returns the cached value for tenantID, or calls read on a miss
// and caches the result, including an empty one.
func loadFixture[T any](l *fixtureLoader, tenantID string, read func(path string) (T, error)) (T, error) {
	var zero T
	if !utils.ValidIdentifier(tenantID) {
		return zero, fmt.Errorf("%w: %q", ErrInvalidTenantID, tenantID)
	}

	key := fmt.Sprintf(l.keyFmt, tenantID)
	if cached, ok := cache.GetFromCache[T](l.cache, key); ok {
		return cached, nil
	}

	v, err, _ := l.group.Do(key, func() (interface{}, error) {
		if cached, ok := cache.GetFromCache[T](l.cache, key); ok {
			return cached, nil
		}
		loaded, err := read(l.path(tenantID))
		if err != nil {
			return nil, err
		}
		l.cache.Set(key, loaded, l.ttl)
		l.log.Debug("Fixture loaded",
			logger.StringField("kind", l.kind),
			logger.StringField("tenant_id", tenantID),
		)
		return loaded, nil
	})
	if err != nil {
		l.log.Error("Failed to load fixture",
			logger.StringField("kind", l.kind),
			logger.StringField("tenant_id", tenantID),
			logger.ErrorField(err),
		)
		return zero, err
	}
	return v.(T), nil
}

func (l *fixtureLoader) clear(tenantIDs ...string) {
	if len(tenantIDs) == 0 {
		l.cache.Flush()
		return
	}
	for _, id := range tenantIDs {
		l.cache.Delete(fmt.Sprintf(l.keyFmt, id))
	}
}
