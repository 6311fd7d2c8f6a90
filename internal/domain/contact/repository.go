package contact

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type Repository interface {
	List(ctx context.Context, q ListQuery) ([]Contact, int64, error)
	GetByID(ctx context.Context, id string) (*Contact, error)
	Create(ctx context.Context, c *Contact) error
	CreateBatch(ctx context.Context, cs []Contact) error
	Update(ctx context.Context, id string, changes map[string]any) (*Contact, error)
	Delete(ctx context.Context, id string) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Migrate creates or updates the contact_info table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Contact{})
}

// List returns one page of contacts matching q together with the filtered
// total. q must be normalized.
func (r *repository) List(ctx context.Context, q ListQuery) ([]Contact, int64, error) {
	base := r.db.WithContext(ctx).Model(&Contact{})
	if q.Filter != "" {
		base = base.Where("LOWER(name) LIKE ? ESCAPE '\\'", "%"+escapeLike(strings.ToLower(q.Filter))+"%")
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count contacts: %w", err)
	}

	if !IsSortable(q.SortKey) {
		return nil, 0, ErrInvalidSortField
	}
	direction := "DESC"
	if q.SortDir == SortAsc {
		direction = "ASC"
	}
	from, _ := q.Range()

	contacts := make([]Contact, 0, q.PageSize)
	err := base.Session(&gorm.Session{}).
		Order(fmt.Sprintf("%s %s", q.SortKey, direction)).
		Order("id " + direction).
		Offset(from).
		Limit(q.PageSize).
		Find(&contacts).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list contacts: %w", err)
	}
	return contacts, total, nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Contact, error) {
	var c Contact
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrContactNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repository) Create(ctx context.Context, c *Contact) error {
	return mapWriteError(r.db.WithContext(ctx).Create(c).Error)
}

// CreateBatch inserts all contacts in one transaction; either every row is
// stored or none is.
func (r *repository) CreateBatch(ctx context.Context, cs []Contact) error {
	if len(cs) == 0 {
		return ErrEmptyBatch
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return mapWriteError(tx.Create(&cs).Error)
	})
}

// Update writes only the given columns and returns the stored row.
func (r *repository) Update(ctx context.Context, id string, changes map[string]any) (*Contact, error) {
	if len(changes) == 0 {
		return nil, ErrNothingToUpdate
	}
	delete(changes, "id")
	delete(changes, "created_at")

	res := r.db.WithContext(ctx).Model(&Contact{}).Where("id = ?", id).Updates(changes)
	if err := mapWriteError(res.Error); err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, ErrContactNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *repository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&Contact{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrContactNotFound
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// mapWriteError turns constraint violations from either backend into
// ErrConstraint.
func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23514", "23505", "23502":
			return fmt.Errorf("%w: %s", ErrConstraint, pgErr.ConstraintName)
		}
	}
	if strings.Contains(err.Error(), "constraint failed") {
		return fmt.Errorf("%w: %s", ErrConstraint, err.Error())
	}
	return err
}
