package service

import "errors"

// Domain errors of the cash-session subsystem. Handlers map these to HTTP
// status codes; none of them leak storage internals.
var (
	// ErrCajaOcupada: the register already has a session in estado abierta.
	ErrCajaOcupada = errors.New("ya existe una sesión abierta en esta caja")

	// ErrSesionNoAbierta: the operation requires an open session. Closing an
	// already-closed session also returns this, which makes a retried close
	// a safe no-op-with-error instead of a double reconciliation.
	ErrSesionNoAbierta = errors.New("la sesión de caja no está abierta")

	// ErrMontoInvalido: negative amount, or zero where zero is degenerate.
	ErrMontoInvalido = errors.New("monto inválido")

	// ErrTipoMovimientoDesconocido: the movement type is outside the closed
	// enumeration. Never swallowed — the ledger would silently drift.
	ErrTipoMovimientoDesconocido = errors.New("tipo de movimiento desconocido")

	// ErrMetodoPagoInvalido: payment method outside the closed enumeration.
	ErrMetodoPagoInvalido = errors.New("método de pago inválido")

	// ErrContencion: the register/session lock was not acquired within the
	// configured wait. Safe for the caller to retry.
	ErrContencion = errors.New("caja en uso, reintente en un momento")

	ErrNoEncontrado = errors.New("no encontrado")
)
