package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/deimercs/gestorfacturas/internal/dto"
	"github.com/deimercs/gestorfacturas/internal/model"
	"github.com/deimercs/gestorfacturas/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	busquedaMinLen   = 2
	busquedaLimite   = 10
	busquedaCacheTTL = 5 * time.Minute

	tipoClientes    = "clientes"
	tipoProveedores = "proveedores"
)

// DirectorioService manages clients and providers.
type DirectorioService interface {
	ListarClientes(ctx context.Context) ([]dto.TerceroResponse, error)
	CrearCliente(ctx context.Context, req dto.CrearTerceroRequest) (*dto.TerceroResponse, error)
	BuscarClientes(ctx context.Context, query string) ([]dto.TerceroResponse, error)
	ListarProveedores(ctx context.Context) ([]dto.TerceroResponse, error)
	CrearProveedor(ctx context.Context, req dto.CrearTerceroRequest) (*dto.TerceroResponse, error)
	BuscarProveedores(ctx context.Context, query string) ([]dto.TerceroResponse, error)
}

type directorioService struct {
	clientes    repository.ClienteRepository
	proveedores repository.ProveedorRepository
	rdb         *redis.Client // optional search cache
}

func NewDirectorioService(clientes repository.ClienteRepository, proveedores repository.ProveedorRepository, rdb *redis.Client) DirectorioService {
	return &directorioService{clientes: clientes, proveedores: proveedores, rdb: rdb}
}

func (s *directorioService) ListarClientes(ctx context.Context) ([]dto.TerceroResponse, error) {
	clientes, err := s.clientes.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.TerceroResponse, 0, len(clientes))
	for i := range clientes {
		out = append(out, clienteToResponse(&clientes[i]))
	}
	return out, nil
}

func (s *directorioService) CrearCliente(ctx context.Context, req dto.CrearTerceroRequest) (*dto.TerceroResponse, error) {
	c := &model.Cliente{
		Nombre:          strings.TrimSpace(req.Nombre),
		TipoDocumento:   strings.TrimSpace(req.TipoDocumento),
		NumeroDocumento: strings.TrimSpace(req.NumeroDocumento),
	}
	if c.Nombre == "" || c.TipoDocumento == "" || c.NumeroDocumento == "" {
		return nil, fmt.Errorf("%w: name, document_type y document_number son obligatorios", ErrValidacion)
	}
	if err := s.clientes.Create(ctx, c); err != nil {
		return nil, err
	}
	s.invalidar(ctx, tipoClientes)
	resp := clienteToResponse(c)
	return &resp, nil
}

func (s *directorioService) BuscarClientes(ctx context.Context, query string) ([]dto.TerceroResponse, error) {
	return s.buscar(ctx, tipoClientes, query, func(q string) ([]dto.TerceroResponse, error) {
		clientes, err := s.clientes.Search(ctx, q, busquedaLimite)
		if err != nil {
			return nil, err
		}
		out := make([]dto.TerceroResponse, 0, len(clientes))
		for i := range clientes {
			out = append(out, clienteToResponse(&clientes[i]))
		}
		return out, nil
	})
}

func (s *directorioService) ListarProveedores(ctx context.Context) ([]dto.TerceroResponse, error) {
	proveedores, err := s.proveedores.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.TerceroResponse, 0, len(proveedores))
	for i := range proveedores {
		out = append(out, proveedorToResponse(&proveedores[i]))
	}
	return out, nil
}

func (s *directorioService) CrearProveedor(ctx context.Context, req dto.CrearTerceroRequest) (*dto.TerceroResponse, error) {
	p := &model.Proveedor{
		Nombre:          strings.TrimSpace(req.Nombre),
		TipoDocumento:   strings.TrimSpace(req.TipoDocumento),
		NumeroDocumento: strings.TrimSpace(req.NumeroDocumento),
	}
	if p.Nombre == "" || p.TipoDocumento == "" || p.NumeroDocumento == "" {
		return nil, fmt.Errorf("%w: name, document_type y document_number son obligatorios", ErrValidacion)
	}
	if err := s.proveedores.Create(ctx, p); err != nil {
		return nil, err
	}
	s.invalidar(ctx, tipoProveedores)
	resp := proveedorToResponse(p)
	return &resp, nil
}

func (s *directorioService) BuscarProveedores(ctx context.Context, query string) ([]dto.TerceroResponse, error) {
	return s.buscar(ctx, tipoProveedores, query, func(q string) ([]dto.TerceroResponse, error) {
		proveedores, err := s.proveedores.Search(ctx, q, busquedaLimite)
		if err != nil {
			return nil, err
		}
		out := make([]dto.TerceroResponse, 0, len(proveedores))
		for i := range proveedores {
			out = append(out, proveedorToResponse(&proveedores[i]))
		}
		return out, nil
	})
}

// buscar applies the minimum length rule and the Redis cache around query.
// Cache errors are logged and ignored.
func (s *directorioService) buscar(ctx context.Context, tipo, query string, fn func(string) ([]dto.TerceroResponse, error)) ([]dto.TerceroResponse, error) {
	q := strings.TrimSpace(query)
	if len([]rune(q)) < busquedaMinLen {
		return []dto.TerceroResponse{}, nil
	}
	key := cacheKey(tipo, q)

	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, key).Bytes(); err == nil {
			var resp []dto.TerceroResponse
			if jsonErr := json.Unmarshal(cached, &resp); jsonErr == nil {
				return resp, nil
			}
		}
	}

	resp, err := fn(q)
	if err != nil {
		return nil, err
	}

	if s.rdb != nil {
		if b, jsonErr := json.Marshal(resp); jsonErr == nil {
			if err := s.rdb.Set(ctx, key, b, busquedaCacheTTL).Err(); err != nil {
				log.Debug().Err(err).Str("key", key).Msg("directorio: cache set fallido")
			}
		}
	}
	return resp, nil
}

// invalidar drops every cached search of tipo.
func (s *directorioService) invalidar(ctx context.Context, tipo string) {
	if s.rdb == nil {
		return
	}
	iter := s.rdb.Scan(ctx, 0, "busqueda:"+tipo+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Warn().Err(err).Str("tipo", tipo).Msg("directorio: no se pudo invalidar la cache")
		return
	}
	if len(keys) > 0 {
		_ = s.rdb.Del(ctx, keys...).Err()
	}
}

func cacheKey(tipo, query string) string {
	return "busqueda:" + tipo + ":" + strings.ToLower(query)
}

func clienteToResponse(c *model.Cliente) dto.TerceroResponse {
	return dto.TerceroResponse{ID: c.ID, Nombre: c.Nombre, TipoDocumento: c.TipoDocumento, NumeroDocumento: c.NumeroDocumento}
}

func proveedorToResponse(p *model.Proveedor) dto.TerceroResponse {
	return dto.TerceroResponse{ID: p.ID, Nombre: p.Nombre, TipoDocumento: p.TipoDocumento, NumeroDocumento: p.NumeroDocumento}
}
