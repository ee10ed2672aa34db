package eventlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"farmchain/core/events"
	"farmchain/observability"
)

// Record is one persisted pool event.
type Record struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence   uint64    `gorm:"uniqueIndex"`
	Type       string    `gorm:"index"`
	Pool       string    `gorm:"index"`
	Who        string    `gorm:"index"`
	Attributes string
	CreatedAt  time.Time
}

// Decoded returns the attribute map of the record.
func (r Record) Decoded() (map[string]string, error) {
	attrs := map[string]string{}
	if strings.TrimSpace(r.Attributes) == "" {
		return attrs, nil
	}
	if err := json.Unmarshal([]byte(r.Attributes), &attrs); err != nil {
		return nil, fmt.Errorf("eventlog: decode attributes: %w", err)
	}
	return attrs, nil
}

// Open connects to the event database. DSNs starting with postgres:// or
// postgresql:// use Postgres; anything else is treated as a SQLite path.
func Open(dsn string) (*gorm.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("eventlog: dsn required")
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}
	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open: %w", err)
	}
	return db, nil
}

// Sink persists rendered events. It implements events.Emitter.
type Sink struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	next uint64
}

// NewSink migrates the schema and resumes the sequence from stored rows.
func NewSink(db *gorm.DB, log *slog.Logger) (*Sink, error) {
	if db == nil {
		return nil, errors.New("eventlog: database required")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("eventlog: migrate: %w", err)
	}
	var last Record
	err := db.Order("sequence desc").Limit(1).Find(&last).Error
	if err != nil {
		return nil, fmt.Errorf("eventlog: resume sequence: %w", err)
	}
	return &Sink{
		db:     db,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
		next:   last.Sequence + 1,
	}, nil
}

// Emit implements events.Emitter. Persistence failures are logged and
// counted; they never fail the operation that produced the event.
func (s *Sink) Emit(evt events.Event) {
	if s == nil {
		return
	}
	rendered := events.Render(evt)
	if rendered == nil {
		return
	}
	observability.Events().RecordEvent(rendered.Type)
	if err := s.Append(rendered.Type, rendered.Attributes); err != nil {
		observability.Events().RecordDrop("eventlog")
		s.logger.Error("eventlog append failed", "type", rendered.Type, "error", err)
	}
}

// Append stores a single event.
func (s *Sink) Append(eventType string, attrs map[string]string) error {
	encoded, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("eventlog: encode attributes: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := Record{
		ID:         uuid.New(),
		Sequence:   s.next,
		Type:       eventType,
		Pool:       attrs["pool"],
		Who:        attrs["who"],
		Attributes: string(encoded),
		CreatedAt:  s.now(),
	}
	if err := s.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("eventlog: insert: %w", err)
	}
	s.next++
	return nil
}

// Query filters List results. Zero values match everything.
type Query struct {
	Pool  string
	Who   string
	Type  string
	After uint64
	Limit int
}

const maxListLimit = 500

// List returns events in emission order.
func (s *Sink) List(q Query) ([]Record, error) {
	if s == nil {
		return nil, errors.New("eventlog: sink not configured")
	}
	limit := q.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	tx := s.db.Model(&Record{}).Where("sequence > ?", q.After)
	if q.Pool != "" {
		tx = tx.Where("pool = ?", q.Pool)
	}
	if q.Who != "" {
		tx = tx.Where("who = ?", q.Who)
	}
	if q.Type != "" {
		tx = tx.Where("type = ?", q.Type)
	}
	var out []Record
	if err := tx.Order("sequence asc").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("eventlog: list: %w", err)
	}
	return out, nil
}
