package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/deimercs/gestorfacturas/internal/dto"
	"github.com/deimercs/gestorfacturas/internal/model"
	"github.com/deimercs/gestorfacturas/internal/repository"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ErrCredenciales is returned for any login failure; the message never tells
// which of email or password was wrong.
var ErrCredenciales = errors.New("credenciales invalidas")

// SesionStore keeps session presence flags.
type SesionStore interface {
	Create(ctx context.Context, userID uint) (string, error)
	Delete(ctx context.Context, id string) error
	TTL() time.Duration
}

type AuthService interface {
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
	Logout(ctx context.Context, sessionID string) error
	CrearUsuario(ctx context.Context, nombre, email, password string) (*dto.UsuarioResponse, error)
}

type authService struct {
	repo     repository.UsuarioRepository
	sesiones SesionStore
	cost     int
}

// NewAuthService uses bcrypt.DefaultCost when cost is zero.
func NewAuthService(repo repository.UsuarioRepository, sesiones SesionStore, cost int) AuthService {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &authService{repo: repo, sesiones: sesiones, cost: cost}
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := s.repo.FindByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCredenciales
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrCredenciales
	}

	sessionID, err := s.sesiones.Create(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("crear sesion: %w", err)
	}

	return &dto.LoginResponse{
		SessionID: sessionID,
		ExpiresIn: int(s.sesiones.TTL().Seconds()),
		User:      usuarioToResponse(user),
	}, nil
}

func (s *authService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.sesiones.Delete(ctx, sessionID)
}

func (s *authService) CrearUsuario(ctx context.Context, nombre, email, password string) (*dto.UsuarioResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if nombre == "" || email == "" || len(password) < 8 {
		return nil, fmt.Errorf("%w: nombre, email y password (min 8) son obligatorios", ErrValidacion)
	}
	hash, err := HashPassword(password, s.cost)
	if err != nil {
		return nil, err
	}
	user := &model.Usuario{
		Nombre:       nombre,
		Email:        email,
		PasswordHash: hash,
		Activo:       true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if esDuplicado(err) {
			return nil, fmt.Errorf("%w: ya existe un usuario con email %s", ErrConflicto, email)
		}
		return nil, err
	}
	resp := usuarioToResponse(user)
	return &resp, nil
}

func usuarioToResponse(u *model.Usuario) dto.UsuarioResponse {
	return dto.UsuarioResponse{ID: u.ID, Nombre: u.Nombre, Email: u.Email}
}
