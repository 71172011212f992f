// service содержит бизнес-логику auth-сервиса: регистрацию и аутентификацию
// пользователей, выпуск/проверку пары токенов, ротацию refresh-токена
// и работу с хранилищем через интерфейсы из пакета storage.
//
// Основные аспекты:
//   - Экземпляр Service безопасен для конкурентного использования из разных
//     горутин при условии, что переданное хранилище потокобезопасно; сам он
//     изменяемого состояния не несёт — только секреты подписи из конфигурации.
//   - Криптографическая валидность refresh-токена (подпись, срок) и его
//     бизнес-валидность (совпадение с хранимым значением) проверяются раздельно;
//     второе делается атомарным compare-and-swap в хранилище.
//   - Ошибки возвращаются сентинелами и далее маппятся транспортом
//     на HTTP-статусы (см. комментарии к переменным ошибок ниже).
package service

import (
	"errors"
	"time"

	"github.com/videotube/auth-service/internal/cache"
	"github.com/videotube/auth-service/internal/config"
	"github.com/videotube/auth-service/internal/storage"
)

var (
	// ErrInvalidCredentials — пара логин/пароль неверна или пользователь не найден.
	// Нарочно единая ошибка для всех причин: не раскрываем, что именно не совпало.
	// Транспорт: 401.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken — токен (access/refresh) некорректен по формату/подписи
	// или его владелец не существует. Транспорт: 401.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired — срок действия токена истёк. Транспорт: 401.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenRevoked — предъявленный refresh-токен уже не равен хранимому:
	// ротирован, отозван или проигран конкурентный refresh. Транспорт: 401.
	ErrTokenRevoked = errors.New("token reused or revoked")

	// ErrUsernameTaken — username уже занят. Транспорт: 409.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrEmailTaken — e-mail уже занят другим пользователем. Транспорт: 409.
	ErrEmailTaken = errors.New("email already taken")

	// ErrInvalidEmail — e-mail имеет некорректный формат. Транспорт: 400.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrInvalidUsername — username не проходит политику валидации. Транспорт: 400.
	ErrInvalidUsername = errors.New("invalid username")

	// ErrInvalidFullName — отображаемое имя пустое. Транспорт: 400.
	ErrInvalidFullName = errors.New("invalid full name")

	// ErrWeakPassword — пароль не удовлетворяет политикам сложности. Транспорт: 400.
	ErrWeakPassword = errors.New("password is too weak")

	// ErrEmptyPassword — пароль пустой. Транспорт: 400.
	ErrEmptyPassword = errors.New("password is empty")
)

// Service описывает бизнес-логику auth-сервиса.
type Service struct {
	storage storage.Storage
	cfg     config.AuthConfig
	rcache  cache.RefreshCache // может быть nil, если кэш не сконфигурирован
	now     func() time.Time   // источник времени, подменяется в тестах
}

// New создаёт новый экземпляр Service.
func New(storage storage.Storage, cfg config.AuthConfig) *Service {
	return &Service{
		storage: storage,
		cfg:     cfg,
		now:     time.Now,
	}
}

// SetRefreshCache устанавливает кэш refresh-токенов (опционально).
func (s *Service) SetRefreshCache(c cache.RefreshCache) {
	s.rcache = c
}

// SetClock подменяет источник времени (для тестов).
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}
