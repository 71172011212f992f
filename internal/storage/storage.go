// storage задаёт контракт хранилища учётных записей (Credential Store).
//
// Единственное место изменяемого состояния сервиса — запись пользователя,
// включая поле refresh_token. Все операции над ним выражены явно:
// безусловная установка при входе, compare-and-swap при ротации и
// идемпотентная очистка при выходе.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/videotube/auth-service/internal/models"
)

var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (username/email).
	ErrAlreadyExists = errors.New("already exists")
	// ErrUnavailable — хранилище недоступно (сетевая/пуловая ошибка).
	// Отличается от прочих: ретраибельна и никогда не трактуется как 401.
	ErrUnavailable = errors.New("storage unavailable")
)

// UserStorage выполняет операции над учётными записями.
type UserStorage interface {
	// SaveUser создаёт нового пользователя.
	SaveUser(ctx context.Context, user *models.User) error
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// UserByUsername находит пользователя по username (нижний регистр).
	UserByUsername(ctx context.Context, username string) (*models.User, error)
	// UserByEmail находит пользователя по email (нижний регистр).
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UpdateUserProfile обновляет изменяемые поля профиля.
	UpdateUserProfile(ctx context.Context, id uuid.UUID, fullName, email string) (*models.User, error)
	// UpdateUserPassword заменяет хэш пароля.
	UpdateUserPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

// SessionStorage выполняет операции над refresh-токеном пользователя.
type SessionStorage interface {
	// SetRefreshToken безусловно записывает новый refresh-токен (вход).
	SetRefreshToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error
	// ReplaceRefreshToken атомарно заменяет oldToken на newToken (ротация).
	// Возвращает false, если хранимое значение уже не равно oldToken —
	// токен был ротирован/отозван параллельно.
	ReplaceRefreshToken(ctx context.Context, id uuid.UUID, oldToken, newToken string, expiresAt time.Time) (bool, error)
	// ClearRefreshToken сбрасывает refresh-токен в NULL (выход). Идемпотентна.
	ClearRefreshToken(ctx context.Context, id uuid.UUID) error
	// ClearExpiredRefreshTokens сбрасывает все протухшие refresh-токены.
	ClearExpiredRefreshTokens(ctx context.Context, now time.Time) error
}

// Storage задаёт контракт работы с БД.
type Storage interface {
	UserStorage
	SessionStorage
	Close()
}
