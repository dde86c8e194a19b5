package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/deimercs/gestorfacturas/internal/dto"
	"github.com/deimercs/gestorfacturas/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// ── In-memory session store stub ──────────────────────────────────────────────

type stubSesiones struct {
	sesiones map[string]uint
	err      error
}

func newStubSesiones() *stubSesiones { return &stubSesiones{sesiones: map[string]uint{}} }

func (s *stubSesiones) Create(_ context.Context, userID uint) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	id := "sess-" + time.Now().Format("150405.000000000")
	s.sesiones[id] = userID
	return id, nil
}

func (s *stubSesiones) Delete(_ context.Context, id string) error {
	delete(s.sesiones, id)
	return nil
}

func (s *stubSesiones) TTL() time.Duration { return 15 * time.Minute }

func newAuth(t *testing.T) (AuthService, *stubSesiones) {
	t.Helper()
	f := newFixture(t)
	sesiones := newStubSesiones()
	svc := NewAuthService(repository.NewUsuarioRepository(f.db), sesiones, bcrypt.MinCost)
	_, err := svc.CrearUsuario(context.Background(), "Compras", "Compras@Example.com", "secreto123")
	require.NoError(t, err)
	return svc, sesiones
}

func TestLogin_Success(t *testing.T) {
	svc, sesiones := newAuth(t)

	resp, err := svc.Login(context.Background(), dto.LoginRequest{Email: "COMPRAS@example.com", Password: "secreto123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, 900, resp.ExpiresIn)
	assert.Equal(t, "compras@example.com", resp.User.Email)
	assert.Contains(t, sesiones.sesiones, resp.SessionID)

	require.NoError(t, svc.Logout(context.Background(), resp.SessionID))
	assert.NotContains(t, sesiones.sesiones, resp.SessionID)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc, sesiones := newAuth(t)

	_, err := svc.Login(context.Background(), dto.LoginRequest{Email: "compras@example.com", Password: "incorrecta"})
	assert.ErrorIs(t, err, ErrCredenciales)

	_, err = svc.Login(context.Background(), dto.LoginRequest{Email: "nadie@example.com", Password: "secreto123"})
	assert.ErrorIs(t, err, ErrCredenciales)
	assert.Empty(t, sesiones.sesiones)
}

func TestLogin_SessionStoreDown(t *testing.T) {
	svc, sesiones := newAuth(t)
	sesiones.err = errors.New("redis: connection refused")

	_, err := svc.Login(context.Background(), dto.LoginRequest{Email: "compras@example.com", Password: "secreto123"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrCredenciales))
}

func TestCrearUsuario_Duplicate(t *testing.T) {
	svc, _ := newAuth(t)
	_, err := svc.CrearUsuario(context.Background(), "Otro", "compras@example.com", "otraclave1")
	assert.ErrorIs(t, err, ErrConflicto)

	_, err = svc.CrearUsuario(context.Background(), "Corto", "x@example.com", "123")
	assert.ErrorIs(t, err, ErrValidacion)
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("clave-segura", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("clave-segura")))
}
