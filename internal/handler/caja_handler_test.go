package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"cajaledger/internal/dto"
	"cajaledger/internal/handler"
	"cajaledger/internal/middleware"
	"cajaledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubCajaService lets each test pick what the movement operation returns.
type stubCajaService struct {
	movimientoErr error
}

func (s *stubCajaService) CrearCaja(context.Context, dto.CrearCajaRequest) (*dto.CajaResponse, error) {
	return nil, nil
}

func (s *stubCajaService) ListarCajas(context.Context) ([]dto.CajaResponse, error) {
	return nil, nil
}

func (s *stubCajaService) Abrir(context.Context, uuid.UUID, dto.AbrirCajaRequest) (*dto.SesionResponse, error) {
	return nil, nil
}

func (s *stubCajaService) RegistrarMovimiento(_ context.Context, req dto.MovimientoRequest) (*dto.MovimientoResponse, error) {
	if s.movimientoErr != nil {
		return nil, s.movimientoErr
	}
	return &dto.MovimientoResponse{Tipo: req.Tipo}, nil
}

func (s *stubCajaService) Cerrar(context.Context, dto.CierreRequest) (*dto.CierreResponse, error) {
	return nil, nil
}

func (s *stubCajaService) ObtenerSesion(context.Context, uuid.UUID) (*dto.SesionDetalleResponse, error) {
	return nil, nil
}

func (s *stubCajaService) SesionActiva(context.Context, uuid.UUID) (*dto.SesionResponse, error) {
	return nil, nil
}

var _ service.CajaService = (*stubCajaService)(nil)

func newMovimientoRouter(svc service.CajaService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	h := handler.NewCajaHandler(svc)
	r.POST("/v1/caja/movimiento", h.RegistrarMovimiento)
	return r
}

func postMovimiento(t *testing.T, r *gin.Engine, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/caja/movimiento", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func movimientoValido() map[string]any {
	return map[string]any{
		"sesion_caja_id": uuid.NewString(),
		"tipo":           "venta",
		"metodo_pago":    "efectivo",
		"monto":          "10",
	}
}

// Payloads outside the closed enums never reach the service: the validator
// tags reject them at the boundary with 422.
func TestMovimientoInvalidoFrenadoPorValidacion(t *testing.T) {
	svc := &stubCajaService{}
	r := newMovimientoRouter(svc)

	casos := map[string]map[string]any{
		"tipo fuera del enum":   {"sesion_caja_id": uuid.NewString(), "tipo": "propina", "metodo_pago": "efectivo", "monto": "5"},
		"metodo fuera del enum": {"sesion_caja_id": uuid.NewString(), "tipo": "venta", "metodo_pago": "cheque", "monto": "5"},
		"monto cero":            {"sesion_caja_id": uuid.NewString(), "tipo": "venta", "metodo_pago": "efectivo", "monto": "0"},
	}
	for nombre, body := range casos {
		t.Run(nombre, func(t *testing.T) {
			w := postMovimiento(t, r, body)
			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

			var resp struct {
				Fields map[string]string `json:"fields"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Fields)
		})
	}
}

// Sentinels raised by the service map to their documented statuses.
func TestErroresDelServicioMapeanEstado(t *testing.T) {
	casos := []struct {
		err    error
		status int
	}{
		{service.ErrMontoInvalido, http.StatusBadRequest},
		{service.ErrTipoMovimientoDesconocido, http.StatusBadRequest},
		{service.ErrSesionNoAbierta, http.StatusConflict},
		{service.ErrNoEncontrado, http.StatusNotFound},
		{service.ErrContencion, http.StatusServiceUnavailable},
	}
	for _, caso := range casos {
		r := newMovimientoRouter(&stubCajaService{movimientoErr: caso.err})
		w := postMovimiento(t, r, movimientoValido())
		assert.Equal(t, caso.status, w.Code, caso.err.Error())
	}

	r := newMovimientoRouter(&stubCajaService{movimientoErr: service.ErrContencion})
	w := postMovimiento(t, r, movimientoValido())
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

// An unexpected error produces exactly one opaque 500, written by the
// error-handler middleware.
func TestErrorInesperadoRespondeUnSolo500(t *testing.T) {
	r := newMovimientoRouter(&stubCajaService{movimientoErr: errors.New("conexión perdida")})

	w := postMovimiento(t, r, movimientoValido())
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Error interno del servidor", resp.Detail)
	// El detalle interno nunca llega al cliente
	assert.NotContains(t, w.Body.String(), "conexión perdida")
}
