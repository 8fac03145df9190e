package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/linelot/linelot/internal/schema"
)

var _ schema.Store = (*SchemaStore)(nil)

// SchemaStore implements schema.Store with a PostgreSQL backend. Schema
// versions are immutable once written (spec §5), so this store never
// updates an existing row, only inserts.
type SchemaStore struct {
	conn *Connection
}

// NewSchemaStore constructs a SchemaStore over conn.
func NewSchemaStore(conn *Connection) (*SchemaStore, error) {
	if conn == nil {
		return nil, ErrNoDatabaseConnection
	}

	return &SchemaStore{conn: conn}, nil
}

// FindByFingerprint looks up the schema version bound to a header
// fingerprint for (tenant, table_code). Returns (nil, nil) if none is
// registered, matching schema.Registry's nil-means-unresolved contract.
func (s *SchemaStore) FindByFingerprint(ctx context.Context, tenantID string, table schema.TableCode, fingerprint string) (*schema.Version, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, tenant_id, table_code, schema_hash, header_fingerprint, fields, created_at
		FROM schema_versions
		WHERE tenant_id = $1 AND table_code = $2 AND header_fingerprint = $3
	`, tenantID, table, fingerprint)

	v, err := scanSchemaVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // unresolved fingerprint is a valid, distinct outcome
	}

	if err != nil {
		return nil, fmt.Errorf("find schema version by fingerprint: %w", err)
	}

	return v, nil
}

// Get fetches a schema version by ID.
func (s *SchemaStore) Get(ctx context.Context, schemaVersionID string) (*schema.Version, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, tenant_id, table_code, schema_hash, header_fingerprint, fields, created_at
		FROM schema_versions WHERE id = $1
	`, schemaVersionID)

	v, err := scanSchemaVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSchemaVersionNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("get schema version: %w", err)
	}

	return v, nil
}

// Register persists a new schema version. v.ID is generated if empty.
func (s *SchemaStore) Register(ctx context.Context, v *schema.Version) error {
	if v.ID == "" {
		v.ID = uuidNew()
	}

	fieldsJSON, err := json.Marshal(v.Fields)
	if err != nil {
		return fmt.Errorf("marshal schema fields: %w", err)
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO schema_versions (id, tenant_id, table_code, schema_hash, header_fingerprint, fields, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, v.ID, v.TenantID, v.TableCode, v.SchemaHash, v.HeaderFingerprint, fieldsJSON)
	if err != nil {
		return translatePQError(err)
	}

	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSchemaVersion(row scannable) (*schema.Version, error) {
	v := &schema.Version{}

	var fieldsJSON []byte

	if err := row.Scan(&v.ID, &v.TenantID, &v.TableCode, &v.SchemaHash, &v.HeaderFingerprint, &fieldsJSON, &v.CreatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(fieldsJSON, &v.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal schema fields: %w", err)
	}

	return v, nil
}

// ErrSchemaVersionNotFound is returned when a schema version ID has no matching row.
var ErrSchemaVersionNotFound = errors.New("schema version not found")
