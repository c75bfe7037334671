package service_test

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"cajaledger/internal/dto"
	"cajaledger/internal/model"
	"cajaledger/internal/repository"
	"cajaledger/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ── In-memory repositories ───────────────────────────────────────────────────

type memCajaRepo struct {
	cajas map[uuid.UUID]*model.Caja
}

func newMemCajaRepo() *memCajaRepo {
	return &memCajaRepo{cajas: make(map[uuid.UUID]*model.Caja)}
}

func (r *memCajaRepo) Create(_ context.Context, caja *model.Caja) error {
	if caja.ID == uuid.Nil {
		caja.ID = uuid.New()
	}
	caja.CreatedAt = time.Now()
	r.cajas[caja.ID] = caja
	return nil
}

func (r *memCajaRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Caja, error) {
	caja, ok := r.cajas[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copia := *caja
	return &copia, nil
}

func (r *memCajaRepo) List(_ context.Context) ([]model.Caja, error) {
	out := make([]model.Caja, 0, len(r.cajas))
	for _, caja := range r.cajas {
		out = append(out, *caja)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nombre < out[j].Nombre })
	return out, nil
}

var _ repository.CajaRepository = (*memCajaRepo)(nil)

type memSesionRepo struct {
	sesiones    map[uuid.UUID]*model.SesionCaja
	movimientos []model.MovimientoCaja
	seq         int64
}

func newMemSesionRepo() *memSesionRepo {
	return &memSesionRepo{sesiones: make(map[uuid.UUID]*model.SesionCaja)}
}

func (r *memSesionRepo) CreateSesion(_ context.Context, s *model.SesionCaja) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	copia := *s
	r.sesiones[s.ID] = &copia
	return nil
}

// FindSesionByID returns a detached copy with movements in replay order,
// like a real row scan would.
func (r *memSesionRepo) FindSesionByID(_ context.Context, id uuid.UUID) (*model.SesionCaja, error) {
	s, ok := r.sesiones[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copia := *s
	copia.Movimientos = r.movimientosDe(id)
	return &copia, nil
}

func (r *memSesionRepo) movimientosDe(id uuid.UUID) []model.MovimientoCaja {
	var movs []model.MovimientoCaja
	for _, m := range r.movimientos {
		if m.SesionCajaID == id {
			movs = append(movs, m)
		}
	}
	sort.Slice(movs, func(i, j int) bool {
		if movs[i].CreatedAt.Equal(movs[j].CreatedAt) {
			return movs[i].Secuencia < movs[j].Secuencia
		}
		return movs[i].CreatedAt.Before(movs[j].CreatedAt)
	})
	return movs
}

func (r *memSesionRepo) FindSesionAbiertaPorCaja(_ context.Context, cajaID uuid.UUID) (*model.SesionCaja, error) {
	for _, s := range r.sesiones {
		if s.CajaID == cajaID && s.Estado == model.EstadoAbierta {
			copia := *s
			return &copia, nil
		}
	}
	return nil, nil
}

func (r *memSesionRepo) FindSesionAbiertaPorUsuario(_ context.Context, usuarioID uuid.UUID) (*model.SesionCaja, error) {
	for _, s := range r.sesiones {
		if s.UsuarioID == usuarioID && s.Estado == model.EstadoAbierta {
			copia := *s
			return &copia, nil
		}
	}
	return nil, nil
}

func (r *memSesionRepo) CerrarSesion(_ context.Context, s *model.SesionCaja) error {
	actual, ok := r.sesiones[s.ID]
	if !ok || actual.Estado != model.EstadoAbierta {
		return repository.ErrSesionYaCerrada
	}
	copia := *s
	copia.Movimientos = nil
	r.sesiones[s.ID] = &copia
	return nil
}

func (r *memSesionRepo) CreateMovimiento(_ context.Context, m *model.MovimientoCaja) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	r.seq++
	m.Secuencia = r.seq
	r.movimientos = append(r.movimientos, *m)
	return nil
}

func (r *memSesionRepo) ListMovimientos(_ context.Context, sesionCajaID uuid.UUID) ([]model.MovimientoCaja, error) {
	return r.movimientosDe(sesionCajaID), nil
}

func (r *memSesionRepo) ListSesiones(_ context.Context, filtro repository.FiltroSesiones) ([]model.SesionCaja, error) {
	var out []model.SesionCaja
	for _, s := range r.sesiones {
		if filtro.CajaID != nil && s.CajaID != *filtro.CajaID {
			continue
		}
		if filtro.UsuarioID != nil && s.UsuarioID != *filtro.UsuarioID {
			continue
		}
		if filtro.Estado != nil && s.Estado != *filtro.Estado {
			continue
		}
		if filtro.Desde != nil && s.OpenedAt.Before(*filtro.Desde) {
			continue
		}
		if filtro.Hasta != nil && !s.OpenedAt.Before(*filtro.Hasta) {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.After(out[j].OpenedAt) })
	return out, nil
}

var _ repository.SesionRepository = (*memSesionRepo)(nil)

// ── Locker / notifier fakes ──────────────────────────────────────────────────

type noopLocker struct{}

func (noopLocker) Acquire(context.Context, string, time.Duration, time.Duration) (func(), error) {
	return func() {}, nil
}

type busyLocker struct{}

func (busyLocker) Acquire(context.Context, string, time.Duration, time.Duration) (func(), error) {
	return nil, errors.New("lock acquisition timed out")
}

type memNotificador struct {
	alertas []string // clasificacion de cada alerta recibida
}

func (n *memNotificador) NotificarDesvio(_ context.Context, _, _, clasificacion string, _, _ decimal.Decimal) error {
	n.alertas = append(n.alertas, clasificacion)
	return nil
}

// ── Setup ────────────────────────────────────────────────────────────────────

type fixture struct {
	svc      service.CajaService
	sesiones *memSesionRepo
	cajas    *memCajaRepo
	alertas  *memNotificador
	cajaID   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sesiones := newMemSesionRepo()
	cajas := newMemCajaRepo()
	alertas := &memNotificador{}
	svc := service.NewCajaService(sesiones, cajas, noopLocker{}, alertas, decimal.NewFromInt(5))

	caja := &model.Caja{Nombre: "Caja 1", SucursalID: uuid.New(), Activa: true}
	require.NoError(t, cajas.Create(context.Background(), caja))

	return &fixture{svc: svc, sesiones: sesiones, cajas: cajas, alertas: alertas, cajaID: caja.ID}
}

func (f *fixture) abrir(t *testing.T, inicial float64) uuid.UUID {
	t.Helper()
	resp, err := f.svc.Abrir(context.Background(), uuid.New(), dto.AbrirCajaRequest{
		CajaID:       f.cajaID.String(),
		MontoInicial: decimal.NewFromFloat(inicial),
	})
	require.NoError(t, err)
	return uuid.MustParse(resp.ID)
}

// ── Abrir ────────────────────────────────────────────────────────────────────

func TestAbrirSesion(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.Abrir(context.Background(), uuid.New(), dto.AbrirCajaRequest{
		CajaID:       f.cajaID.String(),
		MontoInicial: decimal.NewFromFloat(5000),
	})
	require.NoError(t, err)
	assert.Equal(t, model.EstadoAbierta, resp.Estado)
	assert.Equal(t, "5000", resp.MontoInicial.String())
	assert.Nil(t, resp.MontoEsperado)
	assert.Nil(t, resp.ClosedAt)
}

func TestAbrirCajaOcupada(t *testing.T) {
	f := newFixture(t)
	f.abrir(t, 5000)

	// Segunda apertura en la misma caja, sin importar el usuario
	_, err := f.svc.Abrir(context.Background(), uuid.New(), dto.AbrirCajaRequest{
		CajaID:       f.cajaID.String(),
		MontoInicial: decimal.NewFromFloat(2000),
	})
	assert.ErrorIs(t, err, service.ErrCajaOcupada)
}

func TestAbrirMontoInicialNegativo(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Abrir(context.Background(), uuid.New(), dto.AbrirCajaRequest{
		CajaID:       f.cajaID.String(),
		MontoInicial: decimal.NewFromFloat(-100),
	})
	assert.ErrorIs(t, err, service.ErrMontoInvalido)
}

func TestAbrirCajaInexistente(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Abrir(context.Background(), uuid.New(), dto.AbrirCajaRequest{
		CajaID:       uuid.NewString(),
		MontoInicial: decimal.NewFromFloat(100),
	})
	assert.ErrorIs(t, err, service.ErrNoEncontrado)
}

func TestAbrirConContencion(t *testing.T) {
	f := newFixture(t)
	svc := service.NewCajaService(f.sesiones, f.cajas, busyLocker{}, f.alertas, decimal.NewFromInt(5))

	_, err := svc.Abrir(context.Background(), uuid.New(), dto.AbrirCajaRequest{
		CajaID:       f.cajaID.String(),
		MontoInicial: decimal.NewFromFloat(100),
	})
	assert.ErrorIs(t, err, service.ErrContencion)
}

// ── RegistrarMovimiento ──────────────────────────────────────────────────────

func TestRegistrarMovimiento(t *testing.T) {
	f := newFixture(t)
	sesionID := f.abrir(t, 1000)

	resp, err := f.svc.RegistrarMovimiento(context.Background(), dto.MovimientoRequest{
		SesionCajaID: sesionID.String(),
		Tipo:         "venta",
		MetodoPago:   "efectivo",
		Monto:        decimal.NewFromFloat(500),
	})
	require.NoError(t, err)
	assert.Equal(t, "venta", resp.Tipo)

	require.Len(t, f.sesiones.movimientos, 1)
	guardado := f.sesiones.movimientos[0]
	// El monto se guarda siempre positivo; la dirección vive en el tipo
	assert.Equal(t, "500", guardado.Monto.String())
	assert.False(t, guardado.Monto.IsNegative())
}

func TestRegistrarEgresoGuardaMontoPositivo(t *testing.T) {
	f := newFixture(t)
	sesionID := f.abrir(t, 1000)

	_, err := f.svc.RegistrarMovimiento(context.Background(), dto.MovimientoRequest{
		SesionCajaID: sesionID.String(),
		Tipo:         "gasto",
		MetodoPago:   "efectivo",
		Monto:        decimal.NewFromFloat(200),
	})
	require.NoError(t, err)
	assert.Equal(t, "200", f.sesiones.movimientos[0].Monto.String())
}

func TestRegistrarMovimientoMontoCero(t *testing.T) {
	f := newFixture(t)
	sesionID := f.abrir(t, 1000)

	_, err := f.svc.RegistrarMovimiento(context.Background(), dto.MovimientoRequest{
		SesionCajaID: sesionID.String(),
		Tipo:         "venta",
		MetodoPago:   "efectivo",
		Monto:        decimal.Zero,
	})
	assert.ErrorIs(t, err, service.ErrMontoInvalido)
	assert.Empty(t, f.sesiones.movimientos)
}

func TestRegistrarMovimientoTipoDesconocido(t *testing.T) {
	f := newFixture(t)
	sesionID := f.abrir(t, 1000)

	_, err := f.svc.RegistrarMovimiento(context.Background(), dto.MovimientoRequest{
		SesionCajaID: sesionID.String(),
		Tipo:         "propina",
		MetodoPago:   "efectivo",
		Monto:        decimal.NewFromFloat(10),
	})
	assert.ErrorIs(t, err, service.ErrTipoMovimientoDesconocido)
	assert.Empty(t, f.sesiones.movimientos)
}

func TestRegistrarMovimientoSesionCerrada(t *testing.T) {
	f := newFixture(t)
	sesionID := f.abrir(t, 1000)

	_, err := f.svc.Cerrar(context.Background(), dto.CierreRequest{
		SesionCajaID:   sesionID.String(),
		MontoDeclarado: decimal.NewFromFloat(1000),
	})
	require.NoError(t, err)

	_, err = f.svc.RegistrarMovimiento(context.Background(), dto.MovimientoRequest{
		SesionCajaID: sesionID.String(),
		Tipo:         "venta",
		MetodoPago:   "efectivo",
		Monto:        decimal.NewFromFloat(100),
	})
	assert.ErrorIs(t, err, service.ErrSesionNoAbierta)
	// Nada quedó persistido
	assert.Empty(t, f.sesiones.movimientos)
}

// ── Cerrar ───────────────────────────────────────────────────────────────────

func registrar(t *testing.T, f *fixture, sesionID uuid.UUID, tipo, metodo string, monto float64) {
	t.Helper()
	_, err := f.svc.RegistrarMovimiento(context.Background(), dto.MovimientoRequest{
		SesionCajaID: sesionID.String(),
		Tipo:         tipo,
		MetodoPago:   metodo,
		Monto:        decimal.NewFromFloat(monto),
	})
	require.NoError(t, err)
}

func TestCerrarReconciliacion(t *testing.T) {
	f := newFixture(t)
	sesionID := f.abrir(t, 100)

	registrar(t, f, sesionID, "venta", "efectivo", 50)
	registrar(t, f, sesionID, "venta", "tarjeta", 30)
	registrar(t, f, sesionID, "gasto", "efectivo", 20)

	resp, err := f.svc.Cerrar(context.Background(), dto.CierreRequest{
		SesionCajaID:   sesionID.String(),
		MontoDeclarado: decimal.NewFromFloat(125),
	})
	require.NoError(t, err)

	assert.Equal(t, "130", resp.MontoEsperado.String())
	assert.Equal(t, "125", resp.MontoDeclarado.String())
	assert.Equal(t, "-5", resp.Diferencia.String())
	assert.Equal(t, model.ClasificacionFaltante, resp.Clasificacion)
	assert.Equal(t, model.EstadoCerrada, resp.Estado)

	// Los campos quedaron congelados en la sesión
	sesion, err := f.sesiones.FindSesionByID(context.Background(), sesionID)
	require.NoError(t, err)
	assert.Equal(t, model.EstadoCerrada, sesion.Estado)
	require.NotNil(t, sesion.MontoEsperado)
	assert.Equal(t, "130", sesion.MontoEsperado.String())
	require.NotNil(t, sesion.ClosedAt)
}

func TestCerrarSobrante(t *testing.T) {
	f := newFixture(t)
	sesionID := f.abrir(t, 100)

	resp, err := f.svc.Cerrar(context.Background(), dto.CierreRequest{
		SesionCajaID:   sesionID.String(),
		MontoDeclarado: decimal.NewFromFloat(101),
	})
	require.NoError(t, err)
	assert.Equal(t, model.ClasificacionSobrante, resp.Clasificacion)
	assert.Equal(t, "1", resp.Diferencia.String())
}

func TestCerrarSinMovimientos(t *testing.T) {
	f := newFixture(t)
	sesionID := f.abrir(t, 5000)

	resp, err := f.svc.Cerrar(context.Background(), dto.CierreRequest{
		SesionCajaID:   sesionID.String(),
		MontoDeclarado: decimal.NewFromFloat(5000),
	})
	require.NoError(t, err)
	assert.Equal(t, "5000", resp.MontoEsperado.String())
	assert.Equal(t, "0", resp.Diferencia.String())
	assert.Equal(t, model.ClasificacionCuadrada, resp.Clasificacion)
}

func TestCerrarDosVeces(t *testing.T) {
	f := newFixture(t)
	sesionID := f.abrir(t, 100)

	primera, err := f.svc.Cerrar(context.Background(), dto.CierreRequest{
		SesionCajaID:   sesionID.String(),
		MontoDeclarado: decimal.NewFromFloat(90),
	})
	require.NoError(t, err)

	// Reintento del cierre: falla sin doble reconciliación
	_, err = f.svc.Cerrar(context.Background(), dto.CierreRequest{
		SesionCajaID:   sesionID.String(),
		MontoDeclarado: decimal.NewFromFloat(999),
	})
	assert.ErrorIs(t, err, service.ErrSesionNoAbierta)

	// Los campos del primer cierre no cambiaron
	sesion, err := f.sesiones.FindSesionByID(context.Background(), sesionID)
	require.NoError(t, err)
	require.NotNil(t, sesion.MontoDeclarado)
	assert.Equal(t, primera.MontoDeclarado.String(), sesion.MontoDeclarado.String())
	assert.Equal(t, "90", sesion.MontoDeclarado.String())
}

func TestCerrarDeclaradoNegativo(t *testing.T) {
	f := newFixture(t)
	sesionID := f.abrir(t, 100)

	_, err := f.svc.Cerrar(context.Background(), dto.CierreRequest{
		SesionCajaID:   sesionID.String(),
		MontoDeclarado: decimal.NewFromFloat(-1),
	})
	assert.ErrorIs(t, err, service.ErrMontoInvalido)
}

func TestCerrarDisparaAlertaDeDesvio(t *testing.T) {
	f := newFixture(t)
	sesionID := f.abrir(t, 1000)

	// Faltante del 10% — supera el umbral del 5%
	_, err := f.svc.Cerrar(context.Background(), dto.CierreRequest{
		SesionCajaID:   sesionID.String(),
		MontoDeclarado: decimal.NewFromFloat(900),
	})
	require.NoError(t, err)
	require.Len(t, f.alertas.alertas, 1)
	assert.Equal(t, model.ClasificacionFaltante, f.alertas.alertas[0])
}

func TestCerrarCuadradaNoAlerta(t *testing.T) {
	f := newFixture(t)
	sesionID := f.abrir(t, 1000)

	_, err := f.svc.Cerrar(context.Background(), dto.CierreRequest{
		SesionCajaID:   sesionID.String(),
		MontoDeclarado: decimal.NewFromFloat(1000),
	})
	require.NoError(t, err)
	assert.Empty(t, f.alertas.alertas)
}

func TestCerrarDesvioPctConEsperadoCero(t *testing.T) {
	f := newFixture(t)
	sesionID := f.abrir(t, 0)

	resp, err := f.svc.Cerrar(context.Background(), dto.CierreRequest{
		SesionCajaID:   sesionID.String(),
		MontoDeclarado: decimal.NewFromFloat(10),
	})
	require.NoError(t, err)
	assert.Equal(t, model.ClasificacionSobrante, resp.Clasificacion)
	assert.Equal(t, "0", resp.DesvioPct.String())
}

// ── Consultas ────────────────────────────────────────────────────────────────

func TestObtenerSesionConMovimientos(t *testing.T) {
	f := newFixture(t)
	sesionID := f.abrir(t, 100)
	registrar(t, f, sesionID, "venta", "efectivo", 40)
	registrar(t, f, sesionID, "venta", "transferencia", 60)

	detalle, err := f.svc.ObtenerSesion(context.Background(), sesionID)
	require.NoError(t, err)
	assert.Equal(t, model.EstadoAbierta, detalle.Estado)
	assert.Len(t, detalle.Movimientos, 2)
	// Sesión abierta: esperado corriente sólo con efectivo
	require.NotNil(t, detalle.EsperadoActual)
	assert.Equal(t, "140", detalle.EsperadoActual.String())
}

func TestObtenerSesionCerradaNoRecalcula(t *testing.T) {
	f := newFixture(t)
	sesionID := f.abrir(t, 100)
	registrar(t, f, sesionID, "venta", "efectivo", 50)

	_, err := f.svc.Cerrar(context.Background(), dto.CierreRequest{
		SesionCajaID:   sesionID.String(),
		MontoDeclarado: decimal.NewFromFloat(150),
	})
	require.NoError(t, err)

	detalle, err := f.svc.ObtenerSesion(context.Background(), sesionID)
	require.NoError(t, err)
	// El valor congelado al cierre es el autoritativo
	require.NotNil(t, detalle.MontoEsperado)
	assert.Equal(t, "150", detalle.MontoEsperado.String())
	assert.Nil(t, detalle.EsperadoActual)
}

func TestSesionActiva(t *testing.T) {
	f := newFixture(t)
	usuarioID := uuid.New()

	resp, err := f.svc.SesionActiva(context.Background(), usuarioID)
	require.NoError(t, err)
	assert.Nil(t, resp)

	abierta, err := f.svc.Abrir(context.Background(), usuarioID, dto.AbrirCajaRequest{
		CajaID:       f.cajaID.String(),
		MontoInicial: decimal.NewFromFloat(300),
	})
	require.NoError(t, err)

	resp, err = f.svc.SesionActiva(context.Background(), usuarioID)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, abierta.ID, resp.ID)
}
