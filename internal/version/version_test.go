package version_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/relq/internal/core/query/domain"
	"github.com/satishbabariya/relq/internal/version"
)

func TestSatisfies(t *testing.T) {
	info := version.Info{Version: "0.3.1"}

	tests := []struct {
		constraint string
		want       bool
	}{
		{">= 0.1", true},
		{">= 0.1, < 0.3", false},
		{"~> 0.3", true},
		{"= 0.3.1", true},
	}
	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			got, err := info.Satisfies(tt.constraint)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := info.Satisfies("not a constraint")
	assert.Error(t, err)
}

func TestString(t *testing.T) {
	info := version.Get()
	assert.Contains(t, info.String(), "relq version "+version.Version)
	assert.Contains(t, info.FullString(), "Git Commit: "+version.GitCommit)
}

func TestDialects(t *testing.T) {
	info := version.Get()
	assert.Equal(t, domain.SQLServer, info.Dialects[0])
	for _, d := range []domain.Dialect{domain.SQLServer, domain.SQLite, domain.PostgreSQL, domain.MySQL} {
		assert.True(t, info.Supports(d), string(d))
	}
	assert.False(t, info.Supports("oracle"))
	assert.Contains(t, info.FullString(), "Dialects: sqlserver, sqlite, postgres, mysql")
}
