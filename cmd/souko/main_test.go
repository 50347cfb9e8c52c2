package main

import (
	"context"
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shibalab/souko/internal/db"
	"github.com/shibalab/souko/internal/model"
	"github.com/shibalab/souko/internal/store"
)

func TestGeneratePassword(t *testing.T) {
	a, err := generatePassword(16)
	require.NoError(t, err)
	b, err := generatePassword(16)
	require.NoError(t, err)

	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
	assert.NoError(t, model.ValidatePassword(a))
}

func TestCreateAdmin(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	password, err := createAdmin(ctx, database, "Root@Example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, password)

	user, err := store.GetUserByEmail(ctx, database, "root@example.com")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, model.RoleAdmin, user.Role)
}

func TestLoadConfigFlagsOverride(t *testing.T) {
	t.Setenv("SOUKO_DB", "from-env.sqlite3")
	t.Setenv("SOUKO_ADDR", ":9000")

	f, err := parseFlags([]string{"-d", "from-flag.sqlite3", "-base-url", "https://souko.example.com/"})
	require.NoError(t, err)

	cfg, err := loadConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "from-flag.sqlite3", cfg.DBPath)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "https://souko.example.com", cfg.BaseURL)
}

func TestParseFlagsRejectsArguments(t *testing.T) {
	_, err := parseFlags([]string{"serve"})
	assert.Error(t, err)

	_, err = parseFlags([]string{"-h"})
	assert.ErrorIs(t, err, flag.ErrHelp)
}
