package repository

import (
	"context"
	"errors"
	"time"

	"cajaledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrSesionYaCerrada is returned by CerrarSesion when the guarded update hits
// zero rows — the session was closed (or never open) by the time we wrote.
var ErrSesionYaCerrada = errors.New("la sesión ya fue cerrada")

// FiltroSesiones narrows ListSesiones. Nil fields are ignored.
type FiltroSesiones struct {
	Desde      *time.Time
	Hasta      *time.Time
	CajaID     *uuid.UUID
	SucursalID *uuid.UUID
	UsuarioID  *uuid.UUID
	Estado     *string
}

type SesionRepository interface {
	CreateSesion(ctx context.Context, s *model.SesionCaja) error
	// FindSesionByID preloads the session's movements in replay order.
	FindSesionByID(ctx context.Context, id uuid.UUID) (*model.SesionCaja, error)
	// FindSesionAbiertaPorCaja returns (nil, nil) when the register is free.
	FindSesionAbiertaPorCaja(ctx context.Context, cajaID uuid.UUID) (*model.SesionCaja, error)
	FindSesionAbiertaPorUsuario(ctx context.Context, usuarioID uuid.UUID) (*model.SesionCaja, error)
	// CerrarSesion writes the closing figures with a conditional UPDATE
	// guarded on estado = 'abierta'. Zero rows affected → ErrSesionYaCerrada.
	CerrarSesion(ctx context.Context, s *model.SesionCaja) error
	CreateMovimiento(ctx context.Context, m *model.MovimientoCaja) error
	ListMovimientos(ctx context.Context, sesionCajaID uuid.UUID) ([]model.MovimientoCaja, error)
	// ListSesiones returns every session matching the filter, newest first.
	ListSesiones(ctx context.Context, filtro FiltroSesiones) ([]model.SesionCaja, error)
}

type sesionRepo struct{ db *gorm.DB }

func NewSesionRepository(db *gorm.DB) SesionRepository { return &sesionRepo{db: db} }

func (r *sesionRepo) CreateSesion(ctx context.Context, s *model.SesionCaja) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *sesionRepo) FindSesionByID(ctx context.Context, id uuid.UUID) (*model.SesionCaja, error) {
	var s model.SesionCaja
	err := r.db.WithContext(ctx).
		Preload("Movimientos", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, secuencia ASC")
		}).
		First(&s, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sesionRepo) FindSesionAbiertaPorCaja(ctx context.Context, cajaID uuid.UUID) (*model.SesionCaja, error) {
	var s model.SesionCaja
	err := r.db.WithContext(ctx).
		Where("caja_id = ? AND estado = ?", cajaID, model.EstadoAbierta).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sesionRepo) FindSesionAbiertaPorUsuario(ctx context.Context, usuarioID uuid.UUID) (*model.SesionCaja, error) {
	var s model.SesionCaja
	err := r.db.WithContext(ctx).
		Where("usuario_id = ? AND estado = ?", usuarioID, model.EstadoAbierta).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sesionRepo) CerrarSesion(ctx context.Context, s *model.SesionCaja) error {
	res := r.db.WithContext(ctx).
		Model(&model.SesionCaja{}).
		Where("id = ? AND estado = ?", s.ID, model.EstadoAbierta).
		Updates(map[string]interface{}{
			"monto_esperado":  s.MontoEsperado,
			"monto_declarado": s.MontoDeclarado,
			"diferencia":      s.Diferencia,
			"desvio_pct":      s.DesvioPct,
			"clasificacion":   s.Clasificacion,
			"observaciones":   s.Observaciones,
			"estado":          model.EstadoCerrada,
			"closed_at":       s.ClosedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSesionYaCerrada
	}
	return nil
}

func (r *sesionRepo) CreateMovimiento(ctx context.Context, m *model.MovimientoCaja) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *sesionRepo) ListMovimientos(ctx context.Context, sesionCajaID uuid.UUID) ([]model.MovimientoCaja, error) {
	var movs []model.MovimientoCaja
	err := r.db.WithContext(ctx).
		Where("sesion_caja_id = ?", sesionCajaID).
		Order("created_at ASC, secuencia ASC").
		Find(&movs).Error
	return movs, err
}

func (r *sesionRepo) ListSesiones(ctx context.Context, filtro FiltroSesiones) ([]model.SesionCaja, error) {
	q := r.db.WithContext(ctx).Model(&model.SesionCaja{})
	if filtro.Desde != nil {
		q = q.Where("opened_at >= ?", *filtro.Desde)
	}
	if filtro.Hasta != nil {
		q = q.Where("opened_at < ?", *filtro.Hasta)
	}
	if filtro.CajaID != nil {
		q = q.Where("caja_id = ?", *filtro.CajaID)
	}
	if filtro.SucursalID != nil {
		q = q.Where("caja_id IN (?)",
			r.db.Model(&model.Caja{}).Select("id").Where("sucursal_id = ?", *filtro.SucursalID))
	}
	if filtro.UsuarioID != nil {
		q = q.Where("usuario_id = ?", *filtro.UsuarioID)
	}
	if filtro.Estado != nil {
		q = q.Where("estado = ?", *filtro.Estado)
	}

	var sesiones []model.SesionCaja
	err := q.Order("opened_at DESC").Find(&sesiones).Error
	return sesiones, err
}
