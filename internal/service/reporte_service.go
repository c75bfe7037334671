package service

import (
	"context"
	"time"

	"cajaledger/internal/dto"
	"cajaledger/internal/model"
	"cajaledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FiltrosSesiones is the parsed query of the sessions report endpoint.
type FiltrosSesiones struct {
	Desde      *time.Time
	Hasta      *time.Time
	CajaID     *uuid.UUID
	SucursalID *uuid.UUID
	UsuarioID  *uuid.UUID
	Estado     *string
	Page       int
	Limit      int
}

// ReporteService is a read-only projection over sessions. It never mutates
// the ledger and it never invents figures: open sessions are excluded from
// closing-figure sums instead of being folded in as zero, and a storage
// failure propagates — an empty period is the only way to get zero totals.
type ReporteService interface {
	ListarSesiones(ctx context.Context, filtros FiltrosSesiones) (*dto.ListadoSesionesResponse, error)
}

type reporteService struct {
	sesiones repository.SesionRepository
}

func NewReporteService(sesiones repository.SesionRepository) ReporteService {
	return &reporteService{sesiones: sesiones}
}

func (s *reporteService) ListarSesiones(ctx context.Context, filtros FiltrosSesiones) (*dto.ListadoSesionesResponse, error) {
	page, limit := filtros.Page, filtros.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	sesiones, err := s.sesiones.ListSesiones(ctx, repository.FiltroSesiones{
		Desde:      filtros.Desde,
		Hasta:      filtros.Hasta,
		CajaID:     filtros.CajaID,
		SucursalID: filtros.SucursalID,
		UsuarioID:  filtros.UsuarioID,
		Estado:     filtros.Estado,
	})
	if err != nil {
		return nil, err
	}

	resumen := resumirSesiones(sesiones)

	// Aggregates cover the whole filtered set; only the item list is paged.
	start := (page - 1) * limit
	if start > len(sesiones) {
		start = len(sesiones)
	}
	end := start + limit
	if end > len(sesiones) {
		end = len(sesiones)
	}

	items := make([]dto.SesionResponse, 0, end-start)
	for i := start; i < end; i++ {
		items = append(items, sesionToResponse(&sesiones[i]))
	}

	return &dto.ListadoSesionesResponse{
		Sesiones: items,
		Resumen:  resumen,
		Page:     page,
		Limit:    limit,
		Total:    len(sesiones),
	}, nil
}

// resumirSesiones folds a session set into the audit summary. Closing sums
// only include sessions whose figures are non-null; an open session shows up
// in Cantidad and PorEstado but contributes nothing else.
func resumirSesiones(sesiones []model.SesionCaja) dto.ResumenSesiones {
	resumen := dto.ResumenSesiones{
		Cantidad:         len(sesiones),
		PorEstado:        make(map[string]int),
		PorClasificacion: make(map[string]int),
		PorCaja:          make(map[string]decimal.Decimal),
	}

	for i := range sesiones {
		ses := &sesiones[i]
		resumen.TotalInicial = resumen.TotalInicial.Add(ses.MontoInicial)
		resumen.PorEstado[ses.Estado]++

		if ses.MontoEsperado != nil {
			resumen.TotalEsperado = resumen.TotalEsperado.Add(*ses.MontoEsperado)
		}
		if ses.MontoDeclarado != nil {
			resumen.TotalDeclarado = resumen.TotalDeclarado.Add(*ses.MontoDeclarado)
		}
		if ses.Diferencia != nil {
			resumen.TotalDiferencia = resumen.TotalDiferencia.Add(*ses.Diferencia)
			cajaID := ses.CajaID.String()
			resumen.PorCaja[cajaID] = resumen.PorCaja[cajaID].Add(*ses.Diferencia)
		}
		if ses.Clasificacion != nil {
			resumen.PorClasificacion[*ses.Clasificacion]++
		}
	}
	return resumen
}
