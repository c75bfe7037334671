package dto

import "github.com/shopspring/decimal"

// ResumenSesiones aggregates a filtered set of sessions. Sums over closing
// figures only include sessions where the figure is non-null (open sessions
// are counted in PorEstado but never folded into the sums as zero).
type ResumenSesiones struct {
	Cantidad         int                        `json:"cantidad"`
	TotalInicial     decimal.Decimal            `json:"total_inicial"`
	TotalEsperado    decimal.Decimal            `json:"total_esperado"`
	TotalDeclarado   decimal.Decimal            `json:"total_declarado"`
	TotalDiferencia  decimal.Decimal            `json:"total_diferencia"`
	PorEstado        map[string]int             `json:"por_estado"`
	PorClasificacion map[string]int             `json:"por_clasificacion"`
	PorCaja          map[string]decimal.Decimal `json:"por_caja"`
}

type ListadoSesionesResponse struct {
	Sesiones []SesionResponse `json:"sesiones"`
	Resumen  ResumenSesiones  `json:"resumen"`
	Page     int              `json:"page"`
	Limit    int              `json:"limit"`
	Total    int              `json:"total"`
}
