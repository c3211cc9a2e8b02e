// Package history stores past queries per window key, so reopening the
// palette over the same terminal tab or window shows what was asked there.
package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	historySchemaVersion = 1

	DefaultMaxEntriesPerKey = 50
	DefaultMaxKeys          = 50
)

type HistoryManager struct {
	db               *gorm.DB
	maxEntriesPerKey int
	maxKeys          int
	now              func() time.Time
	logger           *zap.Logger
}

// TerminalSnapshot is the terminal state a query was asked in.
type TerminalSnapshot struct {
	Cwd           string `json:"cwd,omitempty"`
	ShellType     string `json:"shell_type,omitempty"`
	VisibleOutput string `json:"visible_output,omitempty"`
}

type HistoryEntry struct {
	ID        uint      `gorm:"primarykey" json:"-"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`

	WindowKey string `gorm:"index" json:"-"`
	Query     string `json:"query"`
	Response  string `json:"response"`
	// Timestamp is milliseconds since the Unix epoch.
	Timestamp int64            `gorm:"index" json:"timestamp"`
	Terminal  TerminalSnapshot `gorm:"embedded;embeddedPrefix:terminal_" json:"terminal_context"`
	IsError   bool             `json:"is_error"`
}

// KeySummary describes the history kept for one window key.
type KeySummary struct {
	WindowKey string `json:"window_key"`
	Entries   int    `json:"entries"`
	Newest    int64  `json:"newest"`
}

// Option configures a HistoryManager.
type Option func(*HistoryManager)

// WithLimits sets the per-key entry cap and the number of keys kept.
func WithLimits(maxEntriesPerKey, maxKeys int) Option {
	return func(m *HistoryManager) {
		if maxEntriesPerKey > 0 {
			m.maxEntriesPerKey = maxEntriesPerKey
		}
		if maxKeys > 0 {
			m.maxKeys = maxKeys
		}
	}
}

// WithClock replaces the clock used to stamp new entries.
func WithClock(now func() time.Time) Option {
	return func(m *HistoryManager) {
		m.now = now
	}
}

func NewHistoryManager(dbFilePath string, log *zap.Logger, opts ...Option) (*HistoryManager, error) {
	if log == nil {
		log = zap.NewNop()
	}

	dbFileExists := true
	if _, err := os.Stat(dbFilePath); errors.Is(err, os.ErrNotExist) {
		dbFileExists = false
	} else if err != nil {
		return nil, fmt.Errorf("error checking history db: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbFilePath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("error opening history db: %w", err)
	}

	versionPath := schemaVersionPath(dbFilePath)
	if needsMigration(dbFileExists, db, versionPath) {
		log.Debug("migrating history schema", zap.String("path", dbFilePath))
		if err := db.AutoMigrate(&HistoryEntry{}); err != nil {
			return nil, fmt.Errorf("error auto-migrating history schema: %w", err)
		}
		if err := writeSchemaVersion(versionPath, historySchemaVersion); err != nil {
			return nil, fmt.Errorf("error writing history schema version: %w", err)
		}
	}

	m := &HistoryManager{
		db:               db,
		maxEntriesPerKey: DefaultMaxEntriesPerKey,
		maxKeys:          DefaultMaxKeys,
		now:              time.Now,
		logger:           log,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func needsMigration(dbFileExists bool, db *gorm.DB, versionPath string) bool {
	if !dbFileExists {
		return true
	}

	versionMatches, err := schemaVersionMatches(versionPath)
	if err != nil || !versionMatches {
		return true
	}

	// A version marker without the table means the db was replaced or
	// truncated; migrate again to restore the schema.
	return !db.Migrator().HasTable(&HistoryEntry{})
}

func writeSchemaVersion(versionPath string, version int) error {
	return os.WriteFile(versionPath, []byte(strconv.Itoa(version)), 0644)
}

func schemaVersionMatches(versionPath string) (bool, error) {
	data, err := os.ReadFile(versionPath)
	if err != nil {
		return false, err
	}
	version, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false, err
	}
	if version != historySchemaVersion {
		return false, fmt.Errorf("history schema version mismatch: got %d, want %d", version, historySchemaVersion)
	}
	return true, nil
}

// schemaVersionPath keeps the marker next to the db file.
func schemaVersionPath(dbFilePath string) string {
	return filepath.Join(filepath.Dir(dbFilePath), "history_schema_version")
}

// Add appends entry under windowKey, trims that key to the per-key cap and
// evicts the keys least recently added to beyond the key cap.
func (m *HistoryManager) Add(windowKey string, entry HistoryEntry) (*HistoryEntry, error) {
	if windowKey == "" {
		return nil, errors.New("window key is required")
	}
	entry.ID = 0
	entry.WindowKey = windowKey
	if entry.Timestamp == 0 {
		entry.Timestamp = m.now().UnixMilli()
	}

	err := m.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		if err := m.trimKey(tx, windowKey); err != nil {
			return err
		}
		return m.evictKeys(tx, windowKey)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add history entry: %w", err)
	}
	return &entry, nil
}

func (m *HistoryManager) trimKey(tx *gorm.DB, windowKey string) error {
	var ids []uint
	err := tx.Model(&HistoryEntry{}).
		Where("window_key = ?", windowKey).
		Order("timestamp desc, id desc").
		Pluck("id", &ids).Error
	if err != nil {
		return err
	}
	if len(ids) <= m.maxEntriesPerKey {
		return nil
	}
	return tx.Where("id IN ?", ids[m.maxEntriesPerKey:]).Delete(&HistoryEntry{}).Error
}

func (m *HistoryManager) evictKeys(tx *gorm.DB, keep string) error {
	summaries, err := keySummaries(tx)
	if err != nil {
		return err
	}
	if len(summaries) <= m.maxKeys {
		return nil
	}

	candidates := lo.Filter(summaries, func(s KeySummary, _ int) bool {
		return s.WindowKey != keep
	})
	excess := len(summaries) - m.maxKeys
	victims := lo.Map(candidates[:min(excess, len(candidates))], func(s KeySummary, _ int) string {
		return s.WindowKey
	})
	m.logger.Debug("evicting history keys", zap.Strings("windowKeys", victims))
	return tx.Where("window_key IN ?", victims).Delete(&HistoryEntry{}).Error
}

type keyRow struct {
	WindowKey string
	Entries   int
	Newest    int64
	LastID    uint
}

// keySummaries lists keys with the oldest newest-entry first.
func keySummaries(db *gorm.DB) ([]KeySummary, error) {
	var rows []keyRow
	err := db.Model(&HistoryEntry{}).
		Select("window_key, COUNT(*) AS entries, MAX(timestamp) AS newest, MAX(id) AS last_id").
		Group("window_key").
		Order("newest asc, last_id asc").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return lo.Map(rows, func(r keyRow, _ int) KeySummary {
		return KeySummary{WindowKey: r.WindowKey, Entries: r.Entries, Newest: r.Newest}
	}), nil
}

// Get returns up to limit of the most recent entries for windowKey, oldest
// first. A non-positive limit returns all of them.
func (m *HistoryManager) Get(windowKey string, limit int) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	db := m.db.Where("window_key = ?", windowKey).Order("timestamp desc, id desc")
	if limit > 0 {
		db = db.Limit(limit)
	}
	if err := db.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	slices.Reverse(entries)
	return entries, nil
}

// Keys summarizes every stored window key, least recently used first.
func (m *HistoryManager) Keys() ([]KeySummary, error) {
	summaries, err := keySummaries(m.db)
	if err != nil {
		return nil, fmt.Errorf("failed to list history keys: %w", err)
	}
	return summaries, nil
}

func (m *HistoryManager) DeleteKey(windowKey string) error {
	result := m.db.Where("window_key = ?", windowKey).Delete(&HistoryEntry{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("no history found for window key %q", windowKey)
	}
	return nil
}

func (m *HistoryManager) ResetHistory() error {
	return m.db.Exec("DELETE FROM history_entries").Error
}

// Close releases the underlying database connection.
func (m *HistoryManager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
