package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"aquaflow/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupService(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	storagePath := filepath.Join(t.TempDir(), "backups")

	cfg := config.BackupConfig{
		Enabled:       true,
		StoragePath:   storagePath,
		RetentionDays: 1,
	}
	logger := zerolog.Nop()
	s := NewBackupService(db, cfg, &logger)

	t.Run("PerformBackup", func(t *testing.T) {
		err := s.PerformBackup(ctx)
		assert.NoError(t, err)

		files, err := os.ReadDir(storagePath)
		assert.NoError(t, err)
		assert.Len(t, files, 1)
	})

	t.Run("CleanupOldBackups", func(t *testing.T) {
		oldFile := filepath.Join(storagePath, "backup_old.db")
		err := os.WriteFile(oldFile, []byte("old"), 0o644)
		require.NoError(t, err)

		oldTime := time.Now().AddDate(0, 0, -2)
		err = os.Chtimes(oldFile, oldTime, oldTime)
		require.NoError(t, err)

		s.CleanupOldBackups(ctx)

		files, err := os.ReadDir(storagePath)
		assert.NoError(t, err)
		assert.Len(t, files, 1)
		assert.NotEqual(t, "backup_old.db", files[0].Name())
	})

	t.Run("Fallback", func(t *testing.T) {
		backupPath := filepath.Join(storagePath, "fallback_test.db")
		err := s.performBackupFallback(backupPath)
		assert.NoError(t, err)
		assert.FileExists(t, backupPath)
	})
}

func TestBackupService_Loop(t *testing.T) {
	db := setupTestDB(t)
	cfg := config.BackupConfig{
		Enabled:     true,
		Schedule:    "10ms",
		StoragePath: filepath.Join(t.TempDir(), "backups_loop"),
	}
	s := NewBackupService(db, cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	s.Start(ctx)

	files, _ := os.ReadDir(cfg.StoragePath)
	assert.NotEmpty(t, files)
}

func TestBackupService_Disabled(t *testing.T) {
	db := setupTestDB(t)
	storagePath := filepath.Join(t.TempDir(), "never")
	s := NewBackupService(db, config.BackupConfig{Enabled: false, StoragePath: storagePath}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Start(ctx)

	assert.NoDirExists(t, storagePath)
}

func TestBackupService_StorageError(t *testing.T) {
	db := setupTestDB(t)
	tmpFile := filepath.Join(t.TempDir(), "notadir")
	require.NoError(t, os.WriteFile(tmpFile, nil, 0o644))

	bs := NewBackupService(db, config.BackupConfig{Enabled: true, StoragePath: filepath.Join(tmpFile, "subdir")}, nil)
	assert.Error(t, bs.PerformBackup(context.Background()))
}
