package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationNames(t *testing.T) {
	names, err := MigrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_poll_archive.sql", names[0])
	assert.IsIncreasing(t, names)

	sql, err := migrationsFS.ReadFile("migrations/" + names[0])
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(sql), "archived_polls"))
	assert.True(t, strings.Contains(string(sql), "archived_poll_options"))
}
