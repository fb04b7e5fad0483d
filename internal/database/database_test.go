package database

import (
	"context"
	"testing"

	"promptguard/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestSchemaPolicy(t *testing.T) {
	tests := []struct {
		name        string
		mode        string
		env         string
		allowAuto   bool
		wantSQL     bool
		wantAuto    bool
		expectError bool
	}{
		{"hybrid in development", "hybrid", "development", false, true, true, false},
		{"hybrid in production", "hybrid", "production", false, true, false, false},
		{"hybrid in staging", "hybrid", "staging", false, true, false, false},
		{"empty mode defaults to hybrid", "", "development", false, true, true, false},
		{"sql everywhere", "sql", "production", false, true, false, false},
		{"auto in development", "auto", "development", false, false, true, false},
		{"auto refused in production", "auto", "production", false, false, false, true},
		{"auto in production with override", "auto", "production", true, false, true, false},
		{"unknown mode rejected", "bogus", "development", false, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				Env:                           tt.env,
				DBSchemaMode:                  tt.mode,
				DBAutoMigrateAllowDestructive: tt.allowAuto,
			}

			runSQL, runAuto, err := schemaPolicy(cfg)
			if tt.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, runSQL)
			assert.Equal(t, tt.wantAuto, runAuto)
		})
	}
}

func TestGetSchemaStatus(t *testing.T) {
	newDB := func(t *testing.T) *gorm.DB {
		t.Helper()
		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
		require.NoError(t, err)
		require.NoError(t, db.AutoMigrate(&MigrationLog{}))
		return db
	}
	ctx := context.Background()

	t.Run("fresh database reports all migrations pending", func(t *testing.T) {
		db := newDB(t)
		cfg := &config.Config{Env: "development", DBSchemaMode: SchemaModeSQL}

		status, err := GetSchemaStatus(ctx, db, cfg)
		require.NoError(t, err)
		assert.Equal(t, SchemaModeSQL, status.Mode)
		assert.True(t, status.WillRunSQL)
		assert.False(t, status.WillRunAutoMigrate)
		assert.Empty(t, status.AppliedVersions)
		assert.Len(t, status.PendingMigrations, len(GetMigrations()))
	})

	t.Run("applied migrations drop out of pending", func(t *testing.T) {
		db := newDB(t)
		require.NoError(t, db.Create(&MigrationLog{Version: 1, Name: "create_violations"}).Error)
		cfg := &config.Config{Env: "development", DBSchemaMode: SchemaModeSQL}

		status, err := GetSchemaStatus(ctx, db, cfg)
		require.NoError(t, err)
		assert.Equal(t, []int{1}, status.AppliedVersions)
		for _, m := range status.PendingMigrations {
			assert.NotEqual(t, 1, m.Version)
		}
	})

	t.Run("auto mode skips migration-log inspection", func(t *testing.T) {
		db := newDB(t)
		cfg := &config.Config{Env: "development", DBSchemaMode: SchemaModeAuto}

		status, err := GetSchemaStatus(ctx, db, cfg)
		require.NoError(t, err)
		assert.False(t, status.WillRunSQL)
		assert.True(t, status.WillRunAutoMigrate)
		assert.Empty(t, status.AppliedVersions)
		assert.Empty(t, status.PendingMigrations)
	})

	t.Run("policy errors propagate", func(t *testing.T) {
		db := newDB(t)
		cfg := &config.Config{Env: "production", DBSchemaMode: SchemaModeAuto}

		_, err := GetSchemaStatus(ctx, db, cfg)
		require.Error(t, err)
	})
}

func TestRegisteredMigrations(t *testing.T) {
	ms := GetMigrations()
	require.NotEmpty(t, ms, "embedded migrations must register at init")

	first := GetMigrationByVersion(1)
	require.NotNil(t, first)
	assert.Equal(t, "create_violations", first.Name)
	assert.Contains(t, first.UpScript, "violations")
	assert.Contains(t, first.DownScript, "DROP TABLE")

	// Versions are sorted ascending.
	for i := 1; i < len(ms); i++ {
		assert.Greater(t, ms[i].Version, ms[i-1].Version)
	}
}
