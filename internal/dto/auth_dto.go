package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=4"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type UsuarioResponse struct {
	ID     uint   `json:"id"`
	Nombre string `json:"name"`
	Email  string `json:"email"`
}

type LoginResponse struct {
	SessionID string          `json:"session_id"`
	ExpiresIn int             `json:"expires_in"` // seconds
	User      UsuarioResponse `json:"user"`
}
