package worker

// email_worker.go
// Processes email jobs from QueueEmail.
// Renders the order PDF and mails it as attachment via SMTP.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/deimercs/gestorfacturas/internal/infra"
	"github.com/deimercs/gestorfacturas/internal/repository"

	"github.com/rs/zerolog/log"
)

// EmailJobPayload is the job envelope sent to QueueEmail.
type EmailJobPayload struct {
	OrdenID uint   `json:"order_id"`
	ToEmail string `json:"to_email"`
}

// EmailSender delivers one PDF attachment. *infra.Mailer implements it.
type EmailSender interface {
	SendOrdenPDF(to, subject, body, fileName string, pdf []byte) error
}

// EmailWorker processes email jobs from QueueEmail.
type EmailWorker struct {
	repo    repository.OrdenRepository
	mailer  EmailSender
	empresa string
}

// NewEmailWorker creates an EmailWorker with the provided SMTP mailer.
func NewEmailWorker(repo repository.OrdenRepository, mailer EmailSender, empresa string) *EmailWorker {
	return &EmailWorker{repo: repo, mailer: mailer, empresa: empresa}
}

// Process sends an email with the order PDF as attachment.
func (w *EmailWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload EmailJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("email_worker: invalid payload: %w", err)
	}
	if payload.ToEmail == "" {
		return errors.New("email_worker: empty to_email")
	}

	orden, err := w.repo.FindByID(ctx, payload.OrdenID)
	if err != nil {
		return fmt.Errorf("email_worker: orden %d: %w", payload.OrdenID, err)
	}
	pdf, err := infra.GenerateOrdenPDF(orden, w.empresa)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("Orden de compra %s", orden.NumeroOrden)
	body := fmt.Sprintf("Adjuntamos la orden de compra %s por un total de $%s.\n\n%s",
		orden.NumeroOrden, orden.Total.StringFixed(2), w.empresa)
	fileName := "orden_" + infra.SanitizeFileName(orden.NumeroOrden) + ".pdf"

	if err := w.mailer.SendOrdenPDF(payload.ToEmail, subject, body, fileName, pdf); err != nil {
		return fmt.Errorf("email_worker: send: %w", err)
	}
	log.Info().Str("to", payload.ToEmail).Uint("orden_id", payload.OrdenID).Msg("email_worker: orden enviada")
	return nil
}
