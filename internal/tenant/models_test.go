package tenant

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTenant_Validate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		tenant  Tenant
		wantErr error
	}{
		{"valid", Tenant{Code: "ACME", Name: "Acme Sheets"}, nil},
		{"missing code", Tenant{Name: "Acme Sheets"}, ErrCodeEmpty},
		{"missing name", Tenant{Code: "ACME"}, ErrNameEmpty},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.wantErr, tc.tenant.Validate())
		})
	}
}

func TestAPIKey_Active(t *testing.T) {
	t.Parallel()

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	cases := []struct {
		name string
		key  APIKey
		want bool
	}{
		{"no expiry no revoke", APIKey{}, true},
		{"expired", APIKey{ExpiresAt: &past}, false},
		{"not yet expired", APIKey{ExpiresAt: &future}, true},
		{"revoked", APIKey{RevokedAt: &past}, false},
		{"revoked takes precedence over future expiry", APIKey{RevokedAt: &past, ExpiresAt: &future}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, tc.key.Active())
		})
	}
}
