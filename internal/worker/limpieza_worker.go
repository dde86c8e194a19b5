package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// LimpiezaJobPayload lists upload files orphaned by a rolled back write.
type LimpiezaJobPayload struct {
	Rutas []string `json:"paths"`
}

// FileRemover deletes a stored upload; already absent files are not errors.
type FileRemover interface {
	Remove(path string) error
}

// LimpiezaWorker removes orphaned uploads from QueueLimpieza.
type LimpiezaWorker struct {
	files FileRemover
}

func NewLimpiezaWorker(files FileRemover) *LimpiezaWorker {
	return &LimpiezaWorker{files: files}
}

func (w *LimpiezaWorker) Process(_ context.Context, raw json.RawMessage) error {
	var payload LimpiezaJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("limpieza_worker: invalid payload: %w", err)
	}
	var errs []error
	for _, p := range payload.Rutas {
		if err := w.files.Remove(p); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	log.Info().Int("archivos", len(payload.Rutas)).Msg("limpieza_worker: huerfanos eliminados")
	return nil
}
