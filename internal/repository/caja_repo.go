package repository

import (
	"context"

	"cajaledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CajaRepository interface {
	Create(ctx context.Context, caja *model.Caja) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Caja, error)
	List(ctx context.Context) ([]model.Caja, error)
}

type cajaRepo struct{ db *gorm.DB }

func NewCajaRepository(db *gorm.DB) CajaRepository { return &cajaRepo{db: db} }

func (r *cajaRepo) Create(ctx context.Context, caja *model.Caja) error {
	return r.db.WithContext(ctx).Create(caja).Error
}

func (r *cajaRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Caja, error) {
	var caja model.Caja
	if err := r.db.WithContext(ctx).First(&caja, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &caja, nil
}

func (r *cajaRepo) List(ctx context.Context) ([]model.Caja, error) {
	var cajas []model.Caja
	err := r.db.WithContext(ctx).Order("nombre ASC").Find(&cajas).Error
	return cajas, err
}
