package storage

import "github.com/google/uuid"

// uuidNew generates a new random entity ID, used for every primary key this
// package writes (tenants, schema versions, P1/P2/P3 records and items,
// import jobs/files, staging rows, API keys).
func uuidNew() string {
	return uuid.NewString()
}
