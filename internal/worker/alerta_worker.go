package worker

// alerta_worker.go
// Processes variance alert jobs from QueueAlertas: when a session closes with
// a deviation beyond the configured threshold, the supervisor gets an email.

import (
	"context"
	"encoding/json"
	"fmt"

	"cajaledger/internal/infra"

	"github.com/rs/zerolog/log"
)

// AlertaWorker sends variance alert emails via SMTP, behind a circuit
// breaker so a downed relay fast-fails instead of stalling the pool.
type AlertaWorker struct {
	mailer       *infra.Mailer
	breaker      *infra.Breaker
	destinatario string
}

func NewAlertaWorker(mailer *infra.Mailer, breaker *infra.Breaker, destinatario string) *AlertaWorker {
	return &AlertaWorker{mailer: mailer, breaker: breaker, destinatario: destinatario}
}

// Process sends one alert email. A returned error sends the job to the DLQ.
func (w *AlertaWorker) Process(_ context.Context, raw json.RawMessage) error {
	var payload AlertaDesvioPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("alerta_worker: invalid payload: %w", err)
	}
	if w.destinatario == "" {
		log.Warn().Msg("alerta_worker: ALERTA_EMAIL not configured — skipping")
		return nil
	}

	subject := fmt.Sprintf("Desvío de caja (%s): sesión %s", payload.Clasificacion, payload.SesionCajaID)
	body := fmt.Sprintf(
		"Sesión de caja %s (caja %s) cerrada con clasificación %q.\nDiferencia: %s\nDesvío: %s%%\n",
		payload.SesionCajaID, payload.CajaID, payload.Clasificacion,
		payload.Diferencia.StringFixed(2), payload.DesvioPct.StringFixed(2),
	)

	err := w.breaker.Do(func() error {
		return w.mailer.SendAlerta(w.destinatario, subject, body)
	})
	if err != nil {
		return fmt.Errorf("alerta_worker: send email: %w", err)
	}
	log.Info().
		Str("sesion_caja_id", payload.SesionCajaID).
		Str("clasificacion", payload.Clasificacion).
		Msg("alerta_worker: alerta enviada")
	return nil
}
