package models

import (
	"time"

	"github.com/google/uuid"
)

// User — учётная запись пользователя платформы.
//
// Поля PasswordHash, RefreshToken и RefreshExpiresAt — чувствительные:
// за пределы сервисного слоя они не отдаются (см. Profile).
// RefreshToken хранит единственный действующий refresh-токен пользователя;
// пустая строка означает отсутствие активной сессии.
type User struct {
	ID       uuid.UUID
	Username string
	Email    string
	FullName string
	// AvatarURL/CoverURL — ссылки на медиа во внешнем хранилище.
	AvatarURL string
	CoverURL  string
	// PasswordHash — bcrypt-хэш пароля (соль встроена в хэш).
	PasswordHash string
	// RefreshToken — текущий действующий refresh-токен (ровно один на пользователя).
	RefreshToken string
	// RefreshExpiresAt — срок действия RefreshToken, денормализован из claims
	// для фоновой очистки протухших сессий.
	RefreshExpiresAt time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Profile возвращает публичную проекцию пользователя без чувствительных полей.
func (u *User) Profile() Profile {
	return Profile{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		AvatarURL: u.AvatarURL,
		CoverURL:  u.CoverURL,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
