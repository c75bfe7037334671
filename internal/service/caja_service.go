package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cajaledger/internal/dto"
	"cajaledger/internal/model"
	"cajaledger/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Locker serializes operations on the same register or session. Acquire
// blocks up to wait and returns a release func; infra.Locker implements it
// on redis.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl, wait time.Duration) (func(), error)
}

// Notificador receives variance alerts when a close deviates beyond the
// configured threshold. Implemented by worker.Dispatcher.
type Notificador interface {
	NotificarDesvio(ctx context.Context, sesionCajaID, cajaID, clasificacion string, diferencia, desvioPct decimal.Decimal) error
}

const (
	lockTTL  = 10 * time.Second
	lockWait = 2 * time.Second
)

type CajaService interface {
	CrearCaja(ctx context.Context, req dto.CrearCajaRequest) (*dto.CajaResponse, error)
	ListarCajas(ctx context.Context) ([]dto.CajaResponse, error)

	Abrir(ctx context.Context, usuarioID uuid.UUID, req dto.AbrirCajaRequest) (*dto.SesionResponse, error)
	RegistrarMovimiento(ctx context.Context, req dto.MovimientoRequest) (*dto.MovimientoResponse, error)
	Cerrar(ctx context.Context, req dto.CierreRequest) (*dto.CierreResponse, error)
	ObtenerSesion(ctx context.Context, id uuid.UUID) (*dto.SesionDetalleResponse, error)
	SesionActiva(ctx context.Context, usuarioID uuid.UUID) (*dto.SesionResponse, error)
}

type cajaService struct {
	sesiones repository.SesionRepository
	cajas    repository.CajaRepository
	locker   Locker
	alertas  Notificador
	// umbralAlertaPct: |desvio_pct| above this enqueues a supervisor alert.
	umbralAlertaPct decimal.Decimal
}

func NewCajaService(
	sesiones repository.SesionRepository,
	cajas repository.CajaRepository,
	locker Locker,
	alertas Notificador,
	umbralAlertaPct decimal.Decimal,
) CajaService {
	return &cajaService{
		sesiones:        sesiones,
		cajas:           cajas,
		locker:          locker,
		alertas:         alertas,
		umbralAlertaPct: umbralAlertaPct,
	}
}

// ── Registros de caja ─────────────────────────────────────────────────────────

func (s *cajaService) CrearCaja(ctx context.Context, req dto.CrearCajaRequest) (*dto.CajaResponse, error) {
	sucursalID, err := uuid.Parse(req.SucursalID)
	if err != nil {
		return nil, fmt.Errorf("sucursal_id inválido: %w", err)
	}
	caja := &model.Caja{Nombre: req.Nombre, SucursalID: sucursalID, Activa: true}
	if err := s.cajas.Create(ctx, caja); err != nil {
		return nil, err
	}
	resp := cajaToResponse(caja)
	return &resp, nil
}

func (s *cajaService) ListarCajas(ctx context.Context) ([]dto.CajaResponse, error) {
	cajas, err := s.cajas.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.CajaResponse, 0, len(cajas))
	for i := range cajas {
		out = append(out, cajaToResponse(&cajas[i]))
	}
	return out, nil
}

// ── Abrir ─────────────────────────────────────────────────────────────────────

func (s *cajaService) Abrir(ctx context.Context, usuarioID uuid.UUID, req dto.AbrirCajaRequest) (*dto.SesionResponse, error) {
	if req.MontoInicial.IsNegative() {
		return nil, fmt.Errorf("%w: el monto inicial no puede ser negativo", ErrMontoInvalido)
	}
	cajaID, err := uuid.Parse(req.CajaID)
	if err != nil {
		return nil, fmt.Errorf("caja_id inválido: %w", err)
	}

	caja, err := s.cajas.FindByID(ctx, cajaID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: caja %s", ErrNoEncontrado, cajaID)
		}
		return nil, err
	}
	if !caja.Activa {
		return nil, fmt.Errorf("%w: caja inactiva", ErrNoEncontrado)
	}

	// Serialize opens on the same register; released on every exit path.
	release, err := s.locker.Acquire(ctx, "lock:caja:"+cajaID.String(), lockTTL, lockWait)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContencion, err)
	}
	defer release()

	abierta, err := s.sesiones.FindSesionAbiertaPorCaja(ctx, cajaID)
	if err != nil {
		return nil, err
	}
	if abierta != nil {
		return nil, ErrCajaOcupada
	}

	sesion := &model.SesionCaja{
		CajaID:       cajaID,
		UsuarioID:    usuarioID,
		MontoInicial: req.MontoInicial,
		Estado:       model.EstadoAbierta,
		OpenedAt:     time.Now().UTC(),
	}
	if err := s.sesiones.CreateSesion(ctx, sesion); err != nil {
		return nil, err
	}

	resp := sesionToResponse(sesion)
	return &resp, nil
}

// ── RegistrarMovimiento ───────────────────────────────────────────────────────
// Appends one immutable entry to the ledger. No session field changes.

func (s *cajaService) RegistrarMovimiento(ctx context.Context, req dto.MovimientoRequest) (*dto.MovimientoResponse, error) {
	sesionID, err := uuid.Parse(req.SesionCajaID)
	if err != nil {
		return nil, fmt.Errorf("sesion_caja_id inválido: %w", err)
	}

	tipo := model.TipoMovimiento(req.Tipo)
	if _, ok := tipo.Sentido(); !ok {
		return nil, fmt.Errorf("%w: %q", ErrTipoMovimientoDesconocido, req.Tipo)
	}
	metodo := model.MetodoPago(req.MetodoPago)
	if !metodo.Valido() {
		return nil, fmt.Errorf("%w: %q", ErrMetodoPagoInvalido, req.MetodoPago)
	}
	// Zero-amount movements are degenerate; sign lives in the type.
	if !req.Monto.IsPositive() {
		return nil, fmt.Errorf("%w: el monto debe ser mayor a cero", ErrMontoInvalido)
	}

	release, err := s.locker.Acquire(ctx, "lock:sesion:"+sesionID.String(), lockTTL, lockWait)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContencion, err)
	}
	defer release()

	sesion, err := s.sesiones.FindSesionByID(ctx, sesionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: sesión %s", ErrNoEncontrado, sesionID)
		}
		return nil, err
	}
	if sesion.Estado != model.EstadoAbierta {
		return nil, ErrSesionNoAbierta
	}

	mov := &model.MovimientoCaja{
		SesionCajaID: sesionID,
		Tipo:         tipo,
		MetodoPago:   metodo,
		Monto:        req.Monto,
		Referencia:   req.Referencia,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.sesiones.CreateMovimiento(ctx, mov); err != nil {
		return nil, err
	}

	resp := movimientoToResponse(mov)
	return &resp, nil
}

// ── Cerrar ────────────────────────────────────────────────────────────────────
// The single, irreversible transition abierta → cerrada. Replays the ledger,
// freezes expected/declared/difference, classifies the variance. A faltante
// never blocks the close — it is recorded and surfaced.

func (s *cajaService) Cerrar(ctx context.Context, req dto.CierreRequest) (*dto.CierreResponse, error) {
	if req.MontoDeclarado.IsNegative() {
		return nil, fmt.Errorf("%w: el monto declarado no puede ser negativo", ErrMontoInvalido)
	}
	sesionID, err := uuid.Parse(req.SesionCajaID)
	if err != nil {
		return nil, fmt.Errorf("sesion_caja_id inválido: %w", err)
	}

	release, err := s.locker.Acquire(ctx, "lock:sesion:"+sesionID.String(), lockTTL, lockWait)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContencion, err)
	}
	defer release()

	sesion, err := s.sesiones.FindSesionByID(ctx, sesionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: sesión %s", ErrNoEncontrado, sesionID)
		}
		return nil, err
	}
	if sesion.Estado != model.EstadoAbierta {
		return nil, ErrSesionNoAbierta
	}

	balance, err := CalcularBalance(sesion.MontoInicial, sesion.Movimientos)
	if err != nil {
		return nil, err
	}

	esperado := balance.Esperado
	declarado := req.MontoDeclarado
	diferencia := declarado.Sub(esperado)
	desvioPct := calcularDesvioPct(diferencia, esperado)
	clasificacion := clasificarDiferencia(diferencia)
	now := time.Now().UTC()

	sesion.MontoEsperado = &esperado
	sesion.MontoDeclarado = &declarado
	sesion.Diferencia = &diferencia
	sesion.DesvioPct = &desvioPct
	sesion.Clasificacion = &clasificacion
	sesion.Observaciones = req.Observaciones
	sesion.Estado = model.EstadoCerrada
	sesion.ClosedAt = &now

	if err := s.sesiones.CerrarSesion(ctx, sesion); err != nil {
		if errors.Is(err, repository.ErrSesionYaCerrada) {
			return nil, ErrSesionNoAbierta
		}
		return nil, err
	}

	s.alertarSiCorresponde(ctx, sesion, diferencia, desvioPct, clasificacion)

	return &dto.CierreResponse{
		SesionCajaID:   sesionID.String(),
		MontoEsperado:  esperado,
		MontoDeclarado: declarado,
		Diferencia:     diferencia,
		DesvioPct:      desvioPct,
		Clasificacion:  clasificacion,
		PorMetodo:      porMetodoToResponse(balance.PorMetodo),
		Estado:         model.EstadoCerrada,
	}, nil
}

// alertarSiCorresponde enqueues a supervisor alert when the deviation exceeds
// the threshold. Best-effort: a queue failure never undoes a committed close.
func (s *cajaService) alertarSiCorresponde(ctx context.Context, sesion *model.SesionCaja, diferencia, desvioPct decimal.Decimal, clasificacion string) {
	if s.alertas == nil || clasificacion == model.ClasificacionCuadrada {
		return
	}
	if desvioPct.Abs().LessThanOrEqual(s.umbralAlertaPct) {
		return
	}
	if err := s.alertas.NotificarDesvio(ctx, sesion.ID.String(), sesion.CajaID.String(), clasificacion, diferencia, desvioPct); err != nil {
		log.Error().Err(err).
			Str("sesion_caja_id", sesion.ID.String()).
			Msg("no se pudo encolar la alerta de desvío")
	}
}

// ── Consultas ─────────────────────────────────────────────────────────────────

func (s *cajaService) ObtenerSesion(ctx context.Context, id uuid.UUID) (*dto.SesionDetalleResponse, error) {
	sesion, err := s.sesiones.FindSesionByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: sesión %s", ErrNoEncontrado, id)
		}
		return nil, err
	}

	balance, err := CalcularBalance(sesion.MontoInicial, sesion.Movimientos)
	if err != nil {
		return nil, err
	}

	detalle := &dto.SesionDetalleResponse{
		SesionResponse: sesionToResponse(sesion),
		PorMetodo:      porMetodoToResponse(balance.PorMetodo),
	}
	// Running total only for open sessions; closed sessions answer with the
	// value frozen at close, never a recomputation.
	if sesion.Estado == model.EstadoAbierta {
		esperado := balance.Esperado
		detalle.EsperadoActual = &esperado
	}
	detalle.Movimientos = make([]dto.MovimientoResponse, 0, len(sesion.Movimientos))
	for i := range sesion.Movimientos {
		detalle.Movimientos = append(detalle.Movimientos, movimientoToResponse(&sesion.Movimientos[i]))
	}
	return detalle, nil
}

func (s *cajaService) SesionActiva(ctx context.Context, usuarioID uuid.UUID) (*dto.SesionResponse, error) {
	sesion, err := s.sesiones.FindSesionAbiertaPorUsuario(ctx, usuarioID)
	if err != nil {
		return nil, err
	}
	if sesion == nil {
		return nil, nil
	}
	resp := sesionToResponse(sesion)
	return &resp, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func cajaToResponse(caja *model.Caja) dto.CajaResponse {
	return dto.CajaResponse{
		ID:         caja.ID.String(),
		Nombre:     caja.Nombre,
		SucursalID: caja.SucursalID.String(),
		Activa:     caja.Activa,
	}
}

func sesionToResponse(s *model.SesionCaja) dto.SesionResponse {
	resp := dto.SesionResponse{
		ID:             s.ID.String(),
		CajaID:         s.CajaID.String(),
		UsuarioID:      s.UsuarioID.String(),
		MontoInicial:   s.MontoInicial,
		MontoEsperado:  s.MontoEsperado,
		MontoDeclarado: s.MontoDeclarado,
		Diferencia:     s.Diferencia,
		DesvioPct:      s.DesvioPct,
		Estado:         s.Estado,
		Clasificacion:  s.Clasificacion,
		Observaciones:  s.Observaciones,
		OpenedAt:       s.OpenedAt.Format(time.RFC3339),
	}
	if s.ClosedAt != nil {
		t := s.ClosedAt.Format(time.RFC3339)
		resp.ClosedAt = &t
	}
	return resp
}

func movimientoToResponse(m *model.MovimientoCaja) dto.MovimientoResponse {
	return dto.MovimientoResponse{
		ID:           m.ID.String(),
		SesionCajaID: m.SesionCajaID.String(),
		Tipo:         string(m.Tipo),
		MetodoPago:   string(m.MetodoPago),
		Monto:        m.Monto,
		Referencia:   m.Referencia,
		CreatedAt:    m.CreatedAt.Format(time.RFC3339),
	}
}

func porMetodoToResponse(porMetodo map[model.MetodoPago]TotalesMetodo) []dto.TotalesMetodoResponse {
	out := make([]dto.TotalesMetodoResponse, 0, len(porMetodo))
	for metodo, t := range porMetodo {
		out = append(out, dto.TotalesMetodoResponse{
			Metodo:   string(metodo),
			Ingresos: t.Ingresos,
			Egresos:  t.Egresos,
			Neto:     t.Neto,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Metodo < out[j].Metodo })
	return out
}
