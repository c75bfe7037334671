package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CrearCajaRequest struct {
	Nombre     string `json:"nombre"      validate:"required,min=2,max=60"`
	SucursalID string `json:"sucursal_id" validate:"required,uuid"`
}

type AbrirCajaRequest struct {
	CajaID       string          `json:"caja_id"       validate:"required,uuid"`
	MontoInicial decimal.Decimal `json:"monto_inicial" validate:"min=0"`
}

type MovimientoRequest struct {
	SesionCajaID string          `json:"sesion_caja_id" validate:"required,uuid"`
	Tipo         string          `json:"tipo"           validate:"required,oneof=ingreso venta pago_credito transferencia_entrada egreso compra gasto transferencia_salida"`
	MetodoPago   string          `json:"metodo_pago"    validate:"required,oneof=efectivo tarjeta transferencia"`
	Monto        decimal.Decimal `json:"monto"          validate:"required,gt=0"`
	Referencia   *string         `json:"referencia"`
}

// CierreRequest carries the blind count: only the physically counted amount,
// never the expected balance.
type CierreRequest struct {
	SesionCajaID   string          `json:"sesion_caja_id"  validate:"required,uuid"`
	MontoDeclarado decimal.Decimal `json:"monto_declarado" validate:"min=0"`
	Observaciones  *string         `json:"observaciones"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type CajaResponse struct {
	ID         string `json:"id"`
	Nombre     string `json:"nombre"`
	SucursalID string `json:"sucursal_id"`
	Activa     bool   `json:"activa"`
}

type MovimientoResponse struct {
	ID           string          `json:"id"`
	SesionCajaID string          `json:"sesion_caja_id"`
	Tipo         string          `json:"tipo"`
	MetodoPago   string          `json:"metodo_pago"`
	Monto        decimal.Decimal `json:"monto"`
	Referencia   *string         `json:"referencia"`
	CreatedAt    string          `json:"created_at"`
}

// TotalesMetodoResponse is one row of the per-payment-method audit breakdown.
type TotalesMetodoResponse struct {
	Metodo   string          `json:"metodo"`
	Ingresos decimal.Decimal `json:"ingresos"`
	Egresos  decimal.Decimal `json:"egresos"`
	Neto     decimal.Decimal `json:"neto"`
}

type SesionResponse struct {
	ID             string           `json:"id"`
	CajaID         string           `json:"caja_id"`
	UsuarioID      string           `json:"usuario_id"`
	MontoInicial   decimal.Decimal  `json:"monto_inicial"`
	MontoEsperado  *decimal.Decimal `json:"monto_esperado"`
	MontoDeclarado *decimal.Decimal `json:"monto_declarado"`
	Diferencia     *decimal.Decimal `json:"diferencia"`
	DesvioPct      *decimal.Decimal `json:"desvio_pct"`
	Estado         string           `json:"estado"`
	Clasificacion  *string          `json:"clasificacion"`
	Observaciones  *string          `json:"observaciones"`
	OpenedAt       string           `json:"opened_at"`
	ClosedAt       *string          `json:"closed_at"`
}

// SesionDetalleResponse adds the full ledger and breakdowns to a session view.
// For open sessions EsperadoActual is the running drawer total; for closed
// sessions the frozen MontoEsperado inside SesionResponse is authoritative
// and EsperadoActual is omitted.
type SesionDetalleResponse struct {
	SesionResponse
	EsperadoActual *decimal.Decimal        `json:"esperado_actual,omitempty"`
	PorMetodo      []TotalesMetodoResponse `json:"por_metodo"`
	Movimientos    []MovimientoResponse    `json:"movimientos"`
}

type CierreResponse struct {
	SesionCajaID   string                  `json:"sesion_caja_id"`
	MontoEsperado  decimal.Decimal         `json:"monto_esperado"`
	MontoDeclarado decimal.Decimal         `json:"monto_declarado"`
	Diferencia     decimal.Decimal         `json:"diferencia"`
	DesvioPct      decimal.Decimal         `json:"desvio_pct"`
	Clasificacion  string                  `json:"clasificacion"`
	PorMetodo      []TotalesMetodoResponse `json:"por_metodo"`
	Estado         string                  `json:"estado"`
}
