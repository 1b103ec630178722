package db

import (
	"io/fs"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionalID(t *testing.T) {
	id, err := optionalID("")
	require.NoError(t, err)
	assert.Nil(t, id)

	want := uuid.New()
	id, err = optionalID(want.String())
	require.NoError(t, err)
	assert.Equal(t, want, *id)
	assert.Equal(t, want.String(), idString(id))

	_, err = optionalID("nope")
	assert.Error(t, err)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "", idString(nil))
	assert.Equal(t, "", derefString(nil))
	assert.Equal(t, []string{}, nonNilStrings(nil))
}

func TestMigrationsEmbedded(t *testing.T) {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	sql, err := migrationsFS.ReadFile(names[0])
	require.NoError(t, err)
	for _, table := range []string{"niches", "videos", "workflow_jobs", "trending_topics", "analytics"} {
		assert.Contains(t, string(sql), "CREATE TABLE IF NOT EXISTS "+table)
	}
}
