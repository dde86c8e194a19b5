package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/deimercs/gestorfacturas/internal/infra"
	"github.com/deimercs/gestorfacturas/internal/repository"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ArchivoAbierto locates a stored attachment ready to be streamed.
type ArchivoAbierto struct {
	Ruta     string
	Nombre   string
	MimeType string
}

type ArchivoService interface {
	Abrir(ctx context.Context, id uint) (*ArchivoAbierto, error)
	Eliminar(ctx context.Context, id uint) error
	PurgarHuerfanos(ctx context.Context, antiguedad time.Duration) ([]string, error)
}

type archivoService struct {
	repo    repository.OrdenRepository
	uploads *infra.UploadStore
}

func NewArchivoService(repo repository.OrdenRepository, uploads *infra.UploadStore) ArchivoService {
	return &archivoService{repo: repo, uploads: uploads}
}

// Abrir resolves the stored path, falling back to the file name inside the
// upload directory when the recorded path no longer exists.
func (s *archivoService) Abrir(ctx context.Context, id uint) (*ArchivoAbierto, error) {
	a, err := s.repo.FindArchivo(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: archivo %d", ErrNoEncontrado, id)
	}
	if err != nil {
		return nil, err
	}

	ruta, ok := s.uploads.Resolve(a.Ruta, a.Nombre)
	if !ok {
		log.Warn().Uint("archivo_id", id).Str("ruta", a.Ruta).Msg("archivo: no encontrado en disco")
		return nil, fmt.Errorf("%w: archivo %d no existe en disco", ErrNoEncontrado, id)
	}
	mime := a.MimeType
	if mime == "" {
		mime = mimePDF
	}
	return &ArchivoAbierto{Ruta: ruta, Nombre: filepath.Base(a.Nombre), MimeType: mime}, nil
}

// Eliminar removes the physical file first and the metadata row second, so an
// interruption leaves an orphan file rather than a dangling row.
func (s *archivoService) Eliminar(ctx context.Context, id uint) error {
	a, err := s.repo.FindArchivo(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: archivo %d", ErrNoEncontrado, id)
	}
	if err != nil {
		return err
	}

	if ruta, ok := s.uploads.Resolve(a.Ruta, a.Nombre); ok {
		if err := s.uploads.Remove(ruta); err != nil {
			return fmt.Errorf("eliminar archivo %d del disco: %w", id, err)
		}
	}
	if err := s.repo.DeleteArchivo(ctx, id); err != nil {
		return fmt.Errorf("eliminar archivo %d: %w", id, err)
	}
	log.Info().Uint("archivo_id", id).Uint("orden_id", a.OrdenID).Msg("archivo eliminado")
	return nil
}

// PurgarHuerfanos deletes upload files older than antiguedad that no
// order_files row references. Returns the removed file names.
func (s *archivoService) PurgarHuerfanos(ctx context.Context, antiguedad time.Duration) ([]string, error) {
	candidatos, err := s.uploads.ListOlderThan(time.Now().Add(-antiguedad))
	if err != nil {
		return nil, fmt.Errorf("listar uploads: %w", err)
	}
	if len(candidatos) == 0 {
		return nil, nil
	}
	nombres, err := s.repo.NombresArchivos(ctx)
	if err != nil {
		return nil, err
	}
	referenciado := make(map[string]bool, len(nombres))
	for _, n := range nombres {
		referenciado[filepath.Base(n)] = true
	}

	var borrados []string
	for _, c := range candidatos {
		if referenciado[c] {
			continue
		}
		if err := s.uploads.Remove(filepath.Join(s.uploads.Dir(), c)); err != nil {
			log.Warn().Err(err).Str("archivo", c).Msg("purga: no se pudo eliminar")
			continue
		}
		borrados = append(borrados, c)
	}
	return borrados, nil
}
