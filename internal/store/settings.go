package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Setting keys owned by the application.
const (
	settingScanDirectories = "scan_directories"
	settingEditorCommand   = "editor_command"
)

// Setting returns the value for key and whether it was set.
func (s *Store) Setting(ctx context.Context, key string) (string, bool, error) {
	if s.db == nil {
		return "", false, ErrStoreClosed
	}
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading setting %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting stores a setting value, replacing any previous one.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
			key, value)
		if err != nil {
			return fmt.Errorf("writing setting %s: %w", key, err)
		}
		return nil
	})
}

// ScanDirectories returns the persisted scan roots, if any.
func (s *Store) ScanDirectories(ctx context.Context) ([]string, error) {
	raw, ok, err := s.Setting(ctx, settingScanDirectories)
	if err != nil || !ok {
		return nil, err
	}
	var dirs []string
	if err := json.Unmarshal([]byte(raw), &dirs); err != nil {
		return nil, fmt.Errorf("decoding scan directories: %w", err)
	}
	return dirs, nil
}

// SetScanDirectories persists the scan roots.
func (s *Store) SetScanDirectories(ctx context.Context, dirs []string) error {
	raw, err := json.Marshal(dirs)
	if err != nil {
		return fmt.Errorf("encoding scan directories: %w", err)
	}
	return s.SetSetting(ctx, settingScanDirectories, string(raw))
}

// EditorCommand returns the configured editor command, defaulting to "code".
func (s *Store) EditorCommand(ctx context.Context) (string, error) {
	value, ok, err := s.Setting(ctx, settingEditorCommand)
	if err != nil {
		return "", err
	}
	if !ok {
		return "code", nil
	}
	return value, nil
}

// SetEditorCommand persists the editor command.
func (s *Store) SetEditorCommand(ctx context.Context, command string) error {
	return s.SetSetting(ctx, settingEditorCommand, command)
}
