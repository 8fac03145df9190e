// Package schema implements the fingerprinted header-schema registry:
// every accepted input file header sequence is bound to a schema version
// per (tenant, table_code), and unknown fingerprints are rejected rather
// than inferred.
package schema

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// TableCode identifies which of the three lineage tables a schema version
// describes.
type TableCode string

const (
	TableP1 TableCode = "P1"
	TableP2 TableCode = "P2"
	TableP3 TableCode = "P3"
)

// ErrHeaderMismatch is returned when a file's header fingerprint does not
// match any registered schema version for the (tenant, table_code) pair.
var ErrHeaderMismatch = errors.New("header fingerprint mismatch")

// FieldType enumerates the column-level coercion types the validation
// engine applies (see internal/tracing.Validator).
type FieldType string

const (
	FieldInt   FieldType = "int"
	FieldFloat FieldType = "float"
	FieldDate  FieldType = "date"
	FieldText  FieldType = "text"
	FieldBool  FieldType = "bool"
)

// FieldSpec describes one column's validation contract, loaded from
// schema_json.
type FieldSpec struct {
	Column   string    `json:"column"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Regex    string    `json:"regex,omitempty"`
	Enum     []string  `json:"enum,omitempty"`
	Min      *float64  `json:"min,omitempty"`
	Max      *float64  `json:"max,omitempty"`
}

// Version is a registered schema version: a fingerprinted header sequence
// bound to a set of field specs for one (tenant, table_code).
type Version struct {
	ID                string
	TenantID          string
	TableCode         TableCode
	SchemaHash        string
	HeaderFingerprint string
	Fields            []FieldSpec
	CreatedAt         time.Time
}

// Store persists and resolves schema versions. Implemented by
// internal/storage.
type Store interface {
	FindByFingerprint(ctx context.Context, tenantID string, table TableCode, fingerprint string) (*Version, error)
	Get(ctx context.Context, schemaVersionID string) (*Version, error)
	Register(ctx context.Context, v *Version) error
}

// Fingerprint computes the header_fingerprint: sha256 of the JSON-encoded,
// ordered, canonicalized header row. Canonicalization trims each cell and
// collapses internal whitespace to a single space; comparison is
// case-sensitive.
func Fingerprint(headers []string) string {
	canon := make([]string, len(headers))
	for i, h := range headers {
		canon[i] = canonicalizeHeader(h)
	}

	encoded, _ := json.Marshal(canon)

	sum := sha256.Sum256(encoded)

	return hex.EncodeToString(sum[:])
}

func canonicalizeHeader(h string) string {
	fields := strings.Fields(strings.TrimSpace(h))

	return strings.Join(fields, " ")
}

// Registry resolves (tenant, table_code, header_row) to a schema Version,
// backed by a Store and a read-through, version-aware cache. Schema
// versions are immutable once created, so the cache never needs
// invalidation (see spec §5's explicit allowance for this).
type Registry struct {
	store Store
	cache sync.Map // schemaVersionID -> *Version
}

// NewRegistry builds a Registry over the given Store.
func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// Resolve looks up the schema version bound to the fingerprint of
// headerRow for (tenant, table). Returns ErrHeaderMismatch if no version
// is registered for that fingerprint.
func (r *Registry) Resolve(ctx context.Context, tenantID string, table TableCode, headerRow []string) (*Version, error) {
	fp := Fingerprint(headerRow)

	v, err := r.store.FindByFingerprint(ctx, tenantID, table, fp)
	if err != nil {
		return nil, fmt.Errorf("resolve schema: %w", err)
	}

	if v == nil {
		return nil, fmt.Errorf("%w: tenant=%s table=%s fingerprint=%s", ErrHeaderMismatch, tenantID, table, fp)
	}

	r.cache.Store(v.ID, v)

	return v, nil
}

// Get fetches a schema version by ID, preferring the process-local cache
// since schema versions never change after creation.
func (r *Registry) Get(ctx context.Context, schemaVersionID string) (*Version, error) {
	if cached, ok := r.cache.Load(schemaVersionID); ok {
		return cached.(*Version), nil
	}

	v, err := r.store.Get(ctx, schemaVersionID)
	if err != nil {
		return nil, fmt.Errorf("get schema version: %w", err)
	}

	r.cache.Store(v.ID, v)

	return v, nil
}
