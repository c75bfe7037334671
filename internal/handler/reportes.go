package handler

import (
	"net/http"
	"strconv"
	"time"

	"cajaledger/internal/apierror"
	"cajaledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ReportesHandler struct{ svc service.ReporteService }

func NewReportesHandler(svc service.ReporteService) *ReportesHandler {
	return &ReportesHandler{svc: svc}
}

// ListarSesiones godoc
// @Summary Lista sesiones con totales agregados para auditoria
// @Tags reportes
// @Produce json
// @Security BearerAuth
// @Param desde query string false "Fecha desde (YYYY-MM-DD o RFC3339)"
// @Param hasta query string false "Fecha hasta (exclusiva)"
// @Param caja_id query string false "Filtrar por caja"
// @Param sucursal_id query string false "Filtrar por sucursal"
// @Param usuario_id query string false "Filtrar por usuario"
// @Param estado query string false "abierta | cerrada"
// @Success 200 {object} dto.ListadoSesionesResponse
// @Failure 400 {object} apierror.APIError
// @Router /v1/caja/sesiones [get]
func (h *ReportesHandler) ListarSesiones(c *gin.Context) {
	filtros, ok := parseFiltros(c)
	if !ok {
		return
	}
	resp, err := h.svc.ListarSesiones(c.Request.Context(), filtros)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func parseFiltros(c *gin.Context) (service.FiltrosSesiones, bool) {
	var filtros service.FiltrosSesiones

	if v := c.Query("desde"); v != "" {
		t, err := parseFecha(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("desde: fecha inválida"))
			return filtros, false
		}
		filtros.Desde = &t
	}
	if v := c.Query("hasta"); v != "" {
		t, err := parseFecha(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("hasta: fecha inválida"))
			return filtros, false
		}
		filtros.Hasta = &t
	}
	if v := c.Query("caja_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("caja_id: UUID inválido"))
			return filtros, false
		}
		filtros.CajaID = &id
	}
	if v := c.Query("sucursal_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("sucursal_id: UUID inválido"))
			return filtros, false
		}
		filtros.SucursalID = &id
	}
	if v := c.Query("usuario_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("usuario_id: UUID inválido"))
			return filtros, false
		}
		filtros.UsuarioID = &id
	}
	if v := c.Query("estado"); v != "" {
		if v != "abierta" && v != "cerrada" {
			c.JSON(http.StatusBadRequest, apierror.New("estado: debe ser abierta o cerrada"))
			return filtros, false
		}
		filtros.Estado = &v
	}

	filtros.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filtros.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	return filtros, true
}

// parseFecha accepts plain dates and full RFC3339 timestamps.
func parseFecha(v string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}
