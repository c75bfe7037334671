package service

import (
	"fmt"

	"cajaledger/internal/model"

	"github.com/shopspring/decimal"
)

// TotalesMetodo accumulates a session's movements for one payment method.
type TotalesMetodo struct {
	Ingresos decimal.Decimal
	Egresos  decimal.Decimal
	Neto     decimal.Decimal
}

// Balance is the result of replaying a session's ledger.
// Esperado only reflects efectivo movements — card and transfer amounts are
// tracked in the breakdowns but never change the countable drawer balance.
type Balance struct {
	Esperado  decimal.Decimal
	PorMetodo map[model.MetodoPago]TotalesMetodo
	PorTipo   map[model.TipoMovimiento]decimal.Decimal
}

// CalcularBalance derives the expected drawer balance and the per-method /
// per-type breakdowns from an opening balance and a movement set.
//
// It is a pure function: same inputs, same outputs, no I/O. Decimal
// arithmetic is exact, so the result does not depend on movement order.
// An unknown movement type fails the whole computation — a partially
// classified ledger is worse than no result.
func CalcularBalance(montoInicial decimal.Decimal, movs []model.MovimientoCaja) (*Balance, error) {
	b := &Balance{
		Esperado:  montoInicial,
		PorMetodo: make(map[model.MetodoPago]TotalesMetodo),
		PorTipo:   make(map[model.TipoMovimiento]decimal.Decimal),
	}

	for _, m := range movs {
		sentido, ok := m.Tipo.Sentido()
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrTipoMovimientoDesconocido, m.Tipo)
		}

		tm := b.PorMetodo[m.MetodoPago]
		if sentido > 0 {
			tm.Ingresos = tm.Ingresos.Add(m.Monto)
			b.PorTipo[m.Tipo] = b.PorTipo[m.Tipo].Add(m.Monto)
			if m.MetodoPago == model.MetodoEfectivo {
				b.Esperado = b.Esperado.Add(m.Monto)
			}
		} else {
			tm.Egresos = tm.Egresos.Add(m.Monto)
			b.PorTipo[m.Tipo] = b.PorTipo[m.Tipo].Add(m.Monto)
			if m.MetodoPago == model.MetodoEfectivo {
				b.Esperado = b.Esperado.Sub(m.Monto)
			}
		}
		tm.Neto = tm.Ingresos.Sub(tm.Egresos)
		b.PorMetodo[m.MetodoPago] = tm
	}

	return b, nil
}

// clasificarDiferencia returns "sobrante" | "faltante" | "cuadrada" from the
// sign of declarado − esperado. Purely presentational: a faltante is
// recorded and surfaced, never blocks the close.
func clasificarDiferencia(diferencia decimal.Decimal) string {
	switch diferencia.Sign() {
	case 1:
		return model.ClasificacionSobrante
	case -1:
		return model.ClasificacionFaltante
	default:
		return model.ClasificacionCuadrada
	}
}

// calcularDesvioPct computes the deviation as a percentage of the expected
// balance, rounded to two decimals. Zero expected → zero pct (avoids a
// division by zero on sessions opened and closed empty).
func calcularDesvioPct(diferencia, esperado decimal.Decimal) decimal.Decimal {
	if esperado.IsZero() {
		return decimal.Zero
	}
	return diferencia.Div(esperado).Mul(decimal.NewFromInt(100)).Round(2)
}
