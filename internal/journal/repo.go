package journal

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/thevault/register/pkg/pagination"
)

// ErrNotFound is returned when no entry matches.
var ErrNotFound = errors.New("journal entry not found")

// Repository manages persistence for journal entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *Entry) error
	FindBySaleID(ctx context.Context, saleID int64) (*Entry, error)
	ListByRegister(ctx context.Context, registerID string, cursor *pagination.Cursor, limit int) ([]Entry, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a journal repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the entry and its lines. Callers wrap it in a transaction.
func (r *repository) Create(ctx context.Context, entry *Entry) error {
	conn := r.db.WithContext(ctx)
	if err := conn.Omit("Lines").Create(entry).Error; err != nil {
		return err
	}
	if len(entry.Lines) == 0 {
		return nil
	}
	return conn.Create(&entry.Lines).Error
}

func (r *repository) FindBySaleID(ctx context.Context, saleID int64) (*Entry, error) {
	var entry Entry
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC") }).
		Where("sale_id = ?", saleID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListByRegister returns up to limit entries newest first, starting after cursor.
func (r *repository) ListByRegister(ctx context.Context, registerID string, cursor *pagination.Cursor, limit int) ([]Entry, error) {
	q := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC") }).
		Where("register_id = ?", registerID)
	if cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID.String())
	}
	var entries []Entry
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// DeleteBefore removes entries created before cutoff along with their lines.
func (r *repository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	conn := r.db.WithContext(ctx)
	stale := conn.Model(&Entry{}).Select("id").Where("created_at < ?", cutoff)
	if err := conn.Where("entry_id IN (?)", stale).Delete(&Line{}).Error; err != nil {
		return 0, err
	}
	res := conn.Where("created_at < ?", cutoff).Delete(&Entry{})
	return res.RowsAffected, res.Error
}
