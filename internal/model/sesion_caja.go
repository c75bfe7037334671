package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TipoMovimiento enumerates the monetary events the ledger accepts.
// The set is closed: an unrecognized type is rejected, never defaulted.
type TipoMovimiento string

const (
	// Increasing types — money enters the session.
	TipoIngreso              TipoMovimiento = "ingreso"
	TipoVenta                TipoMovimiento = "venta"
	TipoPagoCredito          TipoMovimiento = "pago_credito"
	TipoTransferenciaEntrada TipoMovimiento = "transferencia_entrada"

	// Decreasing types — money leaves the session.
	TipoEgreso              TipoMovimiento = "egreso"
	TipoCompra              TipoMovimiento = "compra"
	TipoGasto               TipoMovimiento = "gasto"
	TipoTransferenciaSalida TipoMovimiento = "transferencia_salida"
)

// Sentido returns +1 for increasing types, -1 for decreasing types, and
// ok=false when the type is not part of the closed set.
func (t TipoMovimiento) Sentido() (int, bool) {
	switch t {
	case TipoIngreso, TipoVenta, TipoPagoCredito, TipoTransferenciaEntrada:
		return 1, true
	case TipoEgreso, TipoCompra, TipoGasto, TipoTransferenciaSalida:
		return -1, true
	default:
		return 0, false
	}
}

// MetodoPago is the payment instrument of a movement. Only efectivo affects
// the physical drawer count; the rest are tracked for audit.
type MetodoPago string

const (
	MetodoEfectivo      MetodoPago = "efectivo"
	MetodoTarjeta       MetodoPago = "tarjeta"
	MetodoTransferencia MetodoPago = "transferencia"
)

func (m MetodoPago) Valido() bool {
	switch m {
	case MetodoEfectivo, MetodoTarjeta, MetodoTransferencia:
		return true
	}
	return false
}

// Session lifecycle states. There is no reopen: cerrada is terminal.
const (
	EstadoAbierta = "abierta"
	EstadoCerrada = "cerrada"
)

// Variance classification recorded at close.
const (
	ClasificacionSobrante = "sobrante"
	ClasificacionFaltante = "faltante"
	ClasificacionCuadrada = "cuadrada"
)

// SesionCaja represents one cashier's working period at one register.
// Estado: "abierta" | "cerrada"
type SesionCaja struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CajaID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	UsuarioID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	MontoInicial decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// Closing figures stay NULL while the session is open and are frozen by
	// the single close operation. The stored MontoEsperado is authoritative
	// for closed sessions — it is never recomputed afterwards.
	MontoEsperado  *decimal.Decimal `gorm:"type:decimal(12,2)"`
	MontoDeclarado *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Diferencia     *decimal.Decimal `gorm:"type:decimal(12,2)"`
	DesvioPct      *decimal.Decimal `gorm:"type:decimal(5,2)"`
	Estado         string           `gorm:"type:varchar(20);not null;default:'abierta'"`
	// Clasificacion: "sobrante" | "faltante" | "cuadrada"
	Clasificacion *string `gorm:"type:varchar(20)"`
	Observaciones *string
	OpenedAt      time.Time
	ClosedAt      *time.Time

	Movimientos []MovimientoCaja `gorm:"foreignKey:SesionCajaID"`
}

// MovimientoCaja is an immutable entry in the session ledger.
// Monto is always non-negative; direction is encoded by Tipo. Movements are
// NEVER modified or deleted once written.
type MovimientoCaja struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SesionCajaID uuid.UUID `gorm:"type:uuid;index;not null"`
	// Secuencia breaks created_at ties so that replaying the ledger always
	// yields the same order (and therefore the same expected balance).
	Secuencia  int64           `gorm:"autoIncrement;uniqueIndex"`
	Tipo       TipoMovimiento  `gorm:"type:varchar(30);not null"`
	MetodoPago MetodoPago      `gorm:"type:varchar(20);not null"`
	Monto      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Referencia *string
	CreatedAt  time.Time
}
