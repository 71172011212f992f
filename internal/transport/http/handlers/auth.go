package handlers

import (
	"net/http"

	"github.com/videotube/auth-service/internal/service"
	"github.com/videotube/auth-service/internal/transport/http/httperr"
	"github.com/videotube/auth-service/internal/transport/http/middleware"
)

// Register создаёт учётную запись и сразу открывает сессию.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := decodeStrict(r, &in); err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	pair, uid, err := h.service.RegisterUser(r.Context(), in.Username, in.Email, in.FullName, in.Password)
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, authResponseFrom(pair, uid.String()))
}

// Login аутентифицирует по логину (username или email) и паролю.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeStrict(r, &in); err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	pair, uid, err := h.service.LoginUser(r.Context(), in.Login, in.Password)
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponseFrom(pair, uid.String()))
}

// Refresh выпускает новую пару токенов по валидному refresh-токену.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := decodeStrict(r, &in); err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	pair, uid, err := h.service.RefreshTokens(r.Context(), in.RefreshToken)
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponseFrom(pair, uid.String()))
}

// Logout завершает сессию текущего пользователя.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	profile, ok := middleware.ProfileFrom(r.Context())
	if !ok {
		httperr.WriteError(w, r, service.ErrInvalidToken)
		return
	}

	if err := h.service.LogoutUser(r.Context(), profile.ID); err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, okResponse{Ok: true})
}

// ChangePassword меняет пароль текущего пользователя.
func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	profile, ok := middleware.ProfileFrom(r.Context())
	if !ok {
		httperr.WriteError(w, r, service.ErrInvalidToken)
		return
	}

	var in changePasswordRequest
	if err := decodeStrict(r, &in); err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	if err := h.service.ChangePassword(r.Context(), profile.ID, in.OldPassword, in.NewPassword); err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, okResponse{Ok: true})
}

// CurrentUser возвращает профиль текущего пользователя.
func (h *Handlers) CurrentUser(w http.ResponseWriter, r *http.Request) {
	profile, ok := middleware.ProfileFrom(r.Context())
	if !ok {
		httperr.WriteError(w, r, service.ErrInvalidToken)
		return
	}

	writeJSON(w, http.StatusOK, profileResponseFrom(profile))
}

// UpdateAccount обновляет отображаемое имя и email текущего пользователя.
func (h *Handlers) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	profile, ok := middleware.ProfileFrom(r.Context())
	if !ok {
		httperr.WriteError(w, r, service.ErrInvalidToken)
		return
	}

	var in updateAccountRequest
	if err := decodeStrict(r, &in); err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	updated, err := h.service.UpdateAccount(r.Context(), profile.ID, in.FullName, in.Email)
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, profileResponseFrom(updated))
}
