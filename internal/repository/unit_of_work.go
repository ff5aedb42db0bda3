package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// UnitOfWork runs fn inside one database transaction bound to ctx. The
// transaction commits when fn returns nil and rolls back otherwise,
// including when fn panics.
type UnitOfWork interface {
	Run(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type unitOfWork struct {
	db *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &unitOfWork{db: db}
}

func (u *unitOfWork) Run(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if err := u.db.WithContext(ctx).Transaction(fn); err != nil {
		return fmt.Errorf("history transaction: %w", err)
	}
	return nil
}
