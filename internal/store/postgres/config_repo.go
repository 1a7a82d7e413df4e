package postgres

import (
	"context"

	"github.com/uptrace/bun"

	"sanctuary/backend/internal/domain"
)

type ConfigRepo struct {
	db *bun.DB
}

func NewConfigRepo(db *bun.DB) *ConfigRepo {
	return &ConfigRepo{db: db}
}

func (r *ConfigRepo) ListSettings(ctx context.Context) ([]domain.SiteSetting, error) {
	var rows []domain.SiteSetting
	err := r.db.NewSelect().
		Model(&rows).
		OrderExpr("key ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
