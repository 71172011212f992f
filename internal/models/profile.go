package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile — проекция учётной записи для внешних потребителей.
// Не содержит хэша пароля и refresh-токена.
type Profile struct {
	ID        uuid.UUID
	Username  string
	Email     string
	FullName  string
	AvatarURL string
	CoverURL  string
	CreatedAt time.Time
	UpdatedAt time.Time
}
