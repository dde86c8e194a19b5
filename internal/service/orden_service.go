package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/deimercs/gestorfacturas/internal/dto"
	"github.com/deimercs/gestorfacturas/internal/infra"
	"github.com/deimercs/gestorfacturas/internal/metrics"
	"github.com/deimercs/gestorfacturas/internal/model"
	"github.com/deimercs/gestorfacturas/internal/repository"
	"github.com/deimercs/gestorfacturas/internal/worker"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const mimePDF = "application/pdf"

// Limpiador removes upload files left behind by a rolled back write.
type Limpiador interface {
	Limpiar(ctx context.Context, rutas []string)
}

// ColaEmail enqueues order PDF emails.
type ColaEmail interface {
	EnqueueEmail(ctx context.Context, payload worker.EmailJobPayload) error
}

type OrdenService interface {
	SiguienteConsecutivo(ctx context.Context) (string, error)
	Crear(ctx context.Context, req dto.OrdenRequest, archivos []dto.ArchivoSubido) (*dto.CrearOrdenResponse, error)
	Actualizar(ctx context.Context, id uint, req dto.OrdenRequest, archivos []dto.ArchivoSubido) (*dto.ActualizarOrdenResponse, error)
	CambiarEstado(ctx context.Context, id uint, estado string) (*dto.EstadoOrdenResponse, error)
	Listar(ctx context.Context, filter dto.OrdenFilter) ([]dto.OrdenResponse, error)
	ObtenerPorID(ctx context.Context, id uint) (*dto.OrdenResponse, error)
	ListarArchivos(ctx context.Context, id uint) ([]dto.ArchivoResponse, error)
	GenerarPDF(ctx context.Context, id uint) ([]byte, string, error)
	EnviarPorEmail(ctx context.Context, id uint, email string) error
}

// OrdenServiceConfig carries the tunables of the order coordinator.
type OrdenServiceConfig struct {
	MaxUploadBytes int64
	Empresa        string
}

type ordenService struct {
	repo        repository.OrdenRepository
	clientes    repository.ClienteRepository
	proveedores repository.ProveedorRepository
	uploads     *infra.UploadStore
	limpiador   Limpiador
	cola        ColaEmail
	metrics     *metrics.Metrics
	cfg         OrdenServiceConfig
}

func NewOrdenService(
	repo repository.OrdenRepository,
	clientes repository.ClienteRepository,
	proveedores repository.ProveedorRepository,
	uploads *infra.UploadStore,
	limpiador Limpiador,
	cola ColaEmail,
	m *metrics.Metrics,
	cfg OrdenServiceConfig,
) OrdenService {
	return &ordenService{
		repo:        repo,
		clientes:    clientes,
		proveedores: proveedores,
		uploads:     uploads,
		limpiador:   limpiador,
		cola:        cola,
		metrics:     m,
		cfg:         cfg,
	}
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// SiguienteConsecutivo previews the next consecutive. It is not reserved.
func (s *ordenService) SiguienteConsecutivo(ctx context.Context) (string, error) {
	max, err := s.repo.MaxConsecutivo(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("leer consecutivo: %w", err)
	}
	return SiguienteConsecutivo(max), nil
}

// ── Crear ────────────────────────────────────────────────────────────────────
//   1. Normalize payload, check client/providers exist, check uploads
//   2. Write upload bytes (outside the TX)
//   3. BEGIN TX: lock, next consecutive, order number must be free,
//      header, items, file rows
//   4. COMMIT, or ROLLBACK + orphan cleanup

func (s *ordenService) Crear(ctx context.Context, req dto.OrdenRequest, archivos []dto.ArchivoSubido) (*dto.CrearOrdenResponse, error) {
	cab, items, err := s.prepararOrden(ctx, req, model.EstadoPendienteFactura)
	if err != nil {
		return nil, s.fallo("crear", err)
	}
	if err := s.validarArchivos(archivos); err != nil {
		return nil, s.fallo("crear", err)
	}

	guardados, err := s.guardarArchivos(ctx, archivos)
	if err != nil {
		return nil, s.fallo("crear", err)
	}

	orden := cab
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		if err := s.repo.LockConsecutivo(ctx, tx); err != nil {
			return err
		}
		max, err := s.repo.MaxConsecutivo(ctx, tx)
		if err != nil {
			return err
		}
		orden.Consecutivo = SiguienteConsecutivo(max)
		orden.NumeroOrden = NumeroOrden(orden.TipoDocumento, orden.Consecutivo)

		existe, err := s.repo.ExisteNumero(ctx, tx, orden.NumeroOrden)
		if err != nil {
			return err
		}
		if existe {
			return fmt.Errorf("%w: ya existe una orden con numero %s", ErrConflicto, orden.NumeroOrden)
		}

		if err := s.repo.Create(ctx, tx, orden); err != nil {
			return err
		}
		for i := range items {
			items[i].OrdenID = orden.ID
		}
		if err := s.repo.CreateItems(ctx, tx, items); err != nil {
			return err
		}
		return s.registrarArchivos(ctx, tx, orden.ID, guardados)
	})
	if txErr != nil {
		s.limpiarHuerfanos(ctx, guardados)
		log.Error().Err(txErr).Str("tipo_documento", orden.TipoDocumento).Int("archivos", len(guardados)).
			Msg("orden: creacion revertida")
		return nil, s.fallo("crear", fmt.Errorf("crear orden: %w", txErr))
	}

	s.metrics.OrdenCreada()
	log.Info().Uint("orden_id", orden.ID).Str("numero", orden.NumeroOrden).Int("items", len(items)).
		Int("archivos", len(guardados)).Msg("orden creada")

	return &dto.CrearOrdenResponse{
		OrdenID:     orden.ID,
		Consecutivo: orden.Consecutivo,
		NumeroOrden: orden.NumeroOrden,
	}, nil
}

// ── Actualizar ───────────────────────────────────────────────────────────────
// Header overwritten, items replaced as a whole set, new files appended.
// Consecutive and order number never change.

func (s *ordenService) Actualizar(ctx context.Context, id uint, req dto.OrdenRequest, archivos []dto.ArchivoSubido) (*dto.ActualizarOrdenResponse, error) {
	actual, err := s.buscarOrden(ctx, id)
	if err != nil {
		return nil, s.fallo("actualizar", err)
	}

	// A payload without status keeps the stored one.
	cab, items, err := s.prepararOrden(ctx, req, actual.Estado)
	if err != nil {
		return nil, s.fallo("actualizar", err)
	}
	if err := s.validarArchivos(archivos); err != nil {
		return nil, s.fallo("actualizar", err)
	}

	guardados, err := s.guardarArchivos(ctx, archivos)
	if err != nil {
		return nil, s.fallo("actualizar", err)
	}

	cab.ID = id
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		if err := s.repo.UpdateCabecera(ctx, tx, cab); err != nil {
			return err
		}
		if err := s.repo.DeleteItems(ctx, tx, id); err != nil {
			return err
		}
		for i := range items {
			items[i].OrdenID = id
		}
		if err := s.repo.CreateItems(ctx, tx, items); err != nil {
			return err
		}
		return s.registrarArchivos(ctx, tx, id, guardados)
	})
	if txErr != nil {
		s.limpiarHuerfanos(ctx, guardados)
		log.Error().Err(txErr).Uint("orden_id", id).Msg("orden: actualizacion revertida")
		return nil, s.fallo("actualizar", fmt.Errorf("actualizar orden %d: %w", id, txErr))
	}

	s.metrics.OrdenActualizada()
	log.Info().Uint("orden_id", id).Int("items", len(items)).Int("archivos_nuevos", len(guardados)).
		Msg("orden actualizada")
	return &dto.ActualizarOrdenResponse{OrdenID: id}, nil
}

// ── CambiarEstado ────────────────────────────────────────────────────────────

func (s *ordenService) CambiarEstado(ctx context.Context, id uint, estado string) (*dto.EstadoOrdenResponse, error) {
	existe, err := s.repo.Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !existe {
		return nil, fmt.Errorf("%w: orden %d", ErrNoEncontrado, id)
	}
	estado = strings.TrimSpace(estado)
	if !model.EstadoValido(estado) {
		return nil, fmt.Errorf("%w: estado %q invalido, use uno de %s", ErrValidacion, estado,
			strings.Join(model.EstadosValidos, ", "))
	}
	if err := s.repo.UpdateEstado(ctx, id, estado); err != nil {
		return nil, fmt.Errorf("actualizar estado: %w", err)
	}
	return &dto.EstadoOrdenResponse{OrdenID: id, Estado: estado}, nil
}

// ── Read projections ─────────────────────────────────────────────────────────

func (s *ordenService) Listar(ctx context.Context, filter dto.OrdenFilter) ([]dto.OrdenResponse, error) {
	f := repository.OrdenListFilter{Estado: filter.Estado}
	if filter.Estado != "" && !model.EstadoValido(filter.Estado) {
		return nil, fmt.Errorf("%w: estado %q invalido", ErrValidacion, filter.Estado)
	}
	if filter.FechaDesde != "" {
		t, err := time.ParseInLocation("2006-01-02", filter.FechaDesde, time.Local)
		if err != nil {
			return nil, fmt.Errorf("%w: startDate debe ser YYYY-MM-DD", ErrValidacion)
		}
		f.Desde = t
	}
	if filter.FechaHasta != "" {
		t, err := time.ParseInLocation("2006-01-02", filter.FechaHasta, time.Local)
		if err != nil {
			return nil, fmt.Errorf("%w: endDate debe ser YYYY-MM-DD", ErrValidacion)
		}
		f.Hasta = t.AddDate(0, 0, 1) // inclusive end day
	}

	ordenes, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]dto.OrdenResponse, 0, len(ordenes))
	for i := range ordenes {
		out = append(out, *ordenToResponse(&ordenes[i], false))
	}
	return out, nil
}

func (s *ordenService) ObtenerPorID(ctx context.Context, id uint) (*dto.OrdenResponse, error) {
	o, err := s.buscarOrden(ctx, id)
	if err != nil {
		return nil, err
	}
	return ordenToResponse(o, true), nil
}

func (s *ordenService) ListarArchivos(ctx context.Context, id uint) ([]dto.ArchivoResponse, error) {
	existe, err := s.repo.Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !existe {
		return nil, fmt.Errorf("%w: orden %d", ErrNoEncontrado, id)
	}
	archivos, err := s.repo.ListArchivos(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ArchivoResponse, 0, len(archivos))
	for i := range archivos {
		out = append(out, archivoToResponse(&archivos[i]))
	}
	return out, nil
}

// ── Documents ────────────────────────────────────────────────────────────────

func (s *ordenService) GenerarPDF(ctx context.Context, id uint) ([]byte, string, error) {
	o, err := s.buscarOrden(ctx, id)
	if err != nil {
		return nil, "", err
	}
	pdf, err := infra.GenerateOrdenPDF(o, s.cfg.Empresa)
	if err != nil {
		return nil, "", err
	}
	return pdf, "orden_" + infra.SanitizeFileName(o.NumeroOrden) + ".pdf", nil
}

func (s *ordenService) EnviarPorEmail(ctx context.Context, id uint, email string) error {
	existe, err := s.repo.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !existe {
		return fmt.Errorf("%w: orden %d", ErrNoEncontrado, id)
	}
	if s.cola == nil {
		return errors.New("cola de correo no disponible")
	}
	return s.cola.EnqueueEmail(ctx, worker.EmailJobPayload{OrdenID: id, ToEmail: email})
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (s *ordenService) buscarOrden(ctx context.Context, id uint) (*model.Orden, error) {
	o, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: orden %d", ErrNoEncontrado, id)
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// prepararOrden normalizes the payload into a header and its items and checks
// that the client and every provider exist. estadoDefecto applies when the
// payload has no status. Nothing is written.
func (s *ordenService) prepararOrden(ctx context.Context, req dto.OrdenRequest, estadoDefecto string) (*model.Orden, []model.OrdenItem, error) {
	tipo := strings.TrimSpace(req.TipoDocumento)
	if tipo == "" {
		return nil, nil, fmt.Errorf("%w: document_type es obligatorio", ErrValidacion)
	}
	if len(req.Articulos) == 0 {
		return nil, nil, fmt.Errorf("%w: la orden debe tener al menos un articulo", ErrValidacion)
	}
	estado := strings.TrimSpace(req.Estado)
	if estado == "" {
		estado = estadoDefecto
	}
	if !model.EstadoValido(estado) {
		return nil, nil, fmt.Errorf("%w: estado %q invalido", ErrValidacion, estado)
	}
	vence, err := req.Vencimiento()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: due_date debe ser YYYY-MM-DD", ErrValidacion)
	}

	clienteID := uint(req.ClienteID)
	if _, err := s.clientes.FindByID(ctx, clienteID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: cliente %d", ErrNoEncontrado, clienteID)
		}
		return nil, nil, err
	}

	ids := make([]uint, 0, len(req.Articulos))
	for _, a := range req.Articulos {
		ids = append(ids, uint(a.ProveedorID))
	}
	faltantes, err := s.proveedores.Missing(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	if len(faltantes) > 0 {
		return nil, nil, fmt.Errorf("%w: proveedor %v", ErrNoEncontrado, faltantes)
	}

	factura := strings.TrimSpace(req.FacturaProveedor)
	items := make([]model.OrdenItem, 0, len(req.Articulos))
	for _, a := range req.Articulos {
		if a.Cantidad < 1 {
			return nil, nil, fmt.Errorf("%w: quantity debe ser mayor a cero", ErrValidacion)
		}
		items = append(items, model.OrdenItem{
			ProveedorID:      uint(a.ProveedorID),
			Detalle:          strings.TrimSpace(a.Descripcion),
			Cantidad:         int(a.Cantidad),
			PrecioUnitario:   a.PrecioUnitario.Round(escalaMoneda),
			Subtotal:         a.Subtotal.Round(escalaMoneda),
			IVA:              a.IVA.Round(escalaMoneda),
			Total:            a.Total.Round(escalaMoneda),
			FacturaProveedor: factura,
		})
	}

	subtotal, iva, total := sumarItems(items)
	primero := items[0]
	return &model.Orden{
		TipoDocumento:    tipo,
		ClienteID:        clienteID,
		ProveedorID:      primero.ProveedorID,
		Detalle:          primero.Detalle,
		PrecioUnitario:   primero.PrecioUnitario,
		Cantidad:         primero.Cantidad,
		Subtotal:         subtotal,
		IVA:              iva,
		Total:            total,
		FacturaProveedor: factura,
		FechaVencimiento: vence,
		Estado:           estado,
	}, items, nil
}

// escalaMoneda is the scale of every money column, decimal(14,2). Item
// amounts are rounded to it before summing so the stored header equals the
// sum of the stored items.
const escalaMoneda = 2

// sumarItems returns the exact decimal sums of the item amounts.
func sumarItems(items []model.OrdenItem) (subtotal, iva, total decimal.Decimal) {
	for _, it := range items {
		subtotal = subtotal.Add(it.Subtotal)
		iva = iva.Add(it.IVA)
		total = total.Add(it.Total)
	}
	return subtotal, iva, total
}

func (s *ordenService) validarArchivos(archivos []dto.ArchivoSubido) error {
	for _, a := range archivos {
		ext := strings.ToLower(filepath.Ext(a.Nombre))
		mime := strings.ToLower(strings.TrimSpace(strings.SplitN(a.MimeType, ";", 2)[0]))
		if ext != ".pdf" || mime != mimePDF {
			return fmt.Errorf("%w: %s no es un PDF", ErrValidacion, a.Nombre)
		}
		if s.cfg.MaxUploadBytes > 0 && a.Tamano > s.cfg.MaxUploadBytes {
			return fmt.Errorf("%w: %s supera el limite de %d MB", ErrValidacion, a.Nombre, s.cfg.MaxUploadBytes>>20)
		}
	}
	return nil
}

type archivoGuardado struct {
	origen   dto.ArchivoSubido
	guardado *infra.StoredFile
}

// guardarArchivos writes every upload to disk. On error the files already
// written are removed before returning.
func (s *ordenService) guardarArchivos(ctx context.Context, archivos []dto.ArchivoSubido) ([]archivoGuardado, error) {
	out := make([]archivoGuardado, 0, len(archivos))
	for _, a := range archivos {
		sf, err := s.guardarArchivo(a)
		if err != nil {
			s.limpiarHuerfanos(ctx, out)
			return nil, err
		}
		s.metrics.ArchivoGuardado(sf.Size)
		out = append(out, archivoGuardado{origen: a, guardado: sf})
	}
	return out, nil
}

func (s *ordenService) guardarArchivo(a dto.ArchivoSubido) (*infra.StoredFile, error) {
	r, err := a.Abrir()
	if err != nil {
		return nil, fmt.Errorf("abrir %s: %w", a.Nombre, err)
	}
	defer r.Close()
	return s.uploads.Save(a.Nombre, r)
}

func (s *ordenService) registrarArchivos(ctx context.Context, tx *gorm.DB, ordenID uint, guardados []archivoGuardado) error {
	for _, g := range guardados {
		mime := g.origen.MimeType
		if mime == "" {
			mime = mimePDF
		}
		row := &model.OrdenArchivo{
			OrdenID:     ordenID,
			Nombre:      g.guardado.Name,
			Ruta:        g.guardado.Path,
			Extension:   strings.TrimPrefix(strings.ToLower(filepath.Ext(g.guardado.Name)), "."),
			MimeType:    mime,
			TamanoBytes: g.guardado.Size,
		}
		if err := s.repo.CreateArchivo(ctx, tx, row); err != nil {
			return fmt.Errorf("registrar archivo %s: %w", g.guardado.Name, err)
		}
	}
	return nil
}

func (s *ordenService) limpiarHuerfanos(ctx context.Context, guardados []archivoGuardado) {
	if len(guardados) == 0 || s.limpiador == nil {
		return
	}
	rutas := make([]string, 0, len(guardados))
	for _, g := range guardados {
		rutas = append(rutas, g.guardado.Path)
	}
	log.Warn().Strs("rutas", rutas).Msg("orden: limpiando archivos huerfanos")
	s.limpiador.Limpiar(context.WithoutCancel(ctx), rutas)
}

// fallo classifies err for metrics and maps unique violations to ErrConflicto.
func (s *ordenService) fallo(operacion string, err error) error {
	if !esSentinel(err) && esDuplicado(err) {
		err = fmt.Errorf("%w: %w", ErrConflicto, err)
	}
	tipo := "internal"
	switch {
	case errors.Is(err, ErrValidacion):
		tipo = "validation"
	case errors.Is(err, ErrConflicto):
		tipo = "conflict"
	case errors.Is(err, ErrNoEncontrado):
		tipo = "not_found"
	}
	s.metrics.OrdenFallida(operacion, tipo)
	return err
}

// ── mapping ──────────────────────────────────────────────────────────────────

func ordenToResponse(o *model.Orden, detalle bool) *dto.OrdenResponse {
	resp := &dto.OrdenResponse{
		ID:               o.ID,
		Consecutivo:      o.Consecutivo,
		NumeroOrden:      o.NumeroOrden,
		TipoDocumento:    o.TipoDocumento,
		ClienteID:        o.ClienteID,
		ProveedorID:      o.ProveedorID,
		Detalle:          o.Detalle,
		PrecioUnitario:   o.PrecioUnitario,
		Cantidad:         o.Cantidad,
		Subtotal:         o.Subtotal,
		IVA:              o.IVA,
		Total:            o.Total,
		FacturaProveedor: o.FacturaProveedor,
		Estado:           o.Estado,
		CreatedAt:        o.CreatedAt.Format(time.RFC3339),
		Items:            make([]dto.OrdenItemResponse, 0, len(o.Items)),
	}
	if o.FechaVencimiento != nil {
		d := o.FechaVencimiento.Format("2006-01-02")
		resp.FechaVencimiento = &d
	}
	if o.Cliente != nil {
		resp.ClienteNombre = o.Cliente.Nombre
		if detalle {
			resp.ClienteTipoDocumento = o.Cliente.TipoDocumento
			resp.ClienteNumeroDocumento = o.Cliente.NumeroDocumento
		}
	}
	if o.Proveedor != nil {
		resp.ProveedorNombre = o.Proveedor.Nombre
	}
	for _, it := range o.Items {
		item := dto.OrdenItemResponse{
			ID:               it.ID,
			ProveedorID:      it.ProveedorID,
			Detalle:          it.Detalle,
			Cantidad:         it.Cantidad,
			PrecioUnitario:   it.PrecioUnitario,
			Subtotal:         it.Subtotal,
			IVA:              it.IVA,
			Total:            it.Total,
			FacturaProveedor: it.FacturaProveedor,
		}
		if it.Proveedor != nil {
			item.ProveedorNombre = it.Proveedor.Nombre
		}
		resp.Items = append(resp.Items, item)
	}
	if detalle {
		resp.Archivos = make([]dto.ArchivoResponse, 0, len(o.Archivos))
		for i := range o.Archivos {
			resp.Archivos = append(resp.Archivos, archivoToResponse(&o.Archivos[i]))
		}
	}
	return resp
}

func archivoToResponse(a *model.OrdenArchivo) dto.ArchivoResponse {
	return dto.ArchivoResponse{
		ID:          a.ID,
		OrdenID:     a.OrdenID,
		Nombre:      a.Nombre,
		Extension:   a.Extension,
		MimeType:    a.MimeType,
		TamanoBytes: a.TamanoBytes,
		CreatedAt:   a.CreatedAt.Format(time.RFC3339),
	}
}
