package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/videotube/auth-service/internal/cache"
	"github.com/videotube/auth-service/internal/models"
	"github.com/videotube/auth-service/internal/pkg/log"
	"github.com/videotube/auth-service/internal/storage"
)

// RegisterUser регистрирует нового пользователя и сразу открывает сессию.
func (s *Service) RegisterUser(ctx context.Context, username, email, fullName, password string) (*models.TokenPair, uuid.UUID, error) {
	const op = "service.auth.RegisterUser"

	normUsername, err := validateUsername(username)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidFullName)
	}

	if err := validatePassword(password); err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.storage.UserByUsername(ctx, normUsername); err == nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrUsernameTaken)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.storage.UserByEmail(ctx, normEmail); err == nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	hashedPassword, err := s.hashPassword(password)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Username:     normUsername,
		Email:        normEmail,
		FullName:     fullName,
		PasswordHash: hashedPassword,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			// Гонка двух регистраций: предварительные проверки прошли,
			// а вставка упёрлась в уникальный индекс.
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}

		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.issueTokenPair(ctx, user, "")
}

// LoginUser выполняет вход по логину (username или email) и паролю.
// Любая причина отказа — отсутствующий пользователь, неверный пароль,
// кривой логин — возвращается одной и той же ErrInvalidCredentials.
func (s *Service) LoginUser(ctx context.Context, login, password string) (*models.TokenPair, uuid.UUID, error) {
	const op = "service.auth.LoginUser"

	login = strings.ToLower(strings.TrimSpace(login))
	if login == "" || len(password) == 0 {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	var (
		user *models.User
		err  error
	)
	if strings.Contains(login, "@") {
		user, err = s.storage.UserByEmail(ctx, login)
	} else {
		user, err = s.storage.UserByUsername(ctx, login)
	}
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	if !checkPassword(user.PasswordHash, password) {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	return s.issueTokenPair(ctx, user, "")
}

// RefreshTokens обновляет пару токенов по refresh-токену с ротацией.
// Порядок проверок:
//  1. подпись/срок (криптографическая валидность);
//  2. существование владельца;
//  3. совпадение с хранимым значением — атомарным compare-and-swap вместе
//     с записью нового токена. Ранее ротированный токен не пройдёт шаг 3,
//     даже если он ещё не истёк.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (*models.TokenPair, uuid.UUID, error) {
	const op = "service.auth.RefreshTokens"

	userID, err := s.validateRefreshToken(refreshToken)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	// Быстрый отказ по кэшу для уже отозванных токенов. Кэш не авторитетен:
	// промах или ошибка ведут к обычной проверке через хранилище.
	if s.rcache != nil {
		if entry, ok, cerr := s.rcache.Get(ctx, refreshToken); cerr == nil && ok && entry.Revoked {
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrTokenRevoked)
		}
	}

	user, err := s.storage.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.issueTokenPair(ctx, user, refreshToken)
}

// LogoutUser завершает сессию: сбрасывает хранимый refresh-токен.
// Идемпотентна — повторный выход не является ошибкой.
func (s *Service) LogoutUser(ctx context.Context, userID uuid.UUID) error {
	const op = "service.auth.LogoutUser"

	user, err := s.storage.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.ClearRefreshToken(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if s.rcache != nil && user.RefreshToken != "" {
		if cerr := s.rcache.MarkRevoked(ctx, user.RefreshToken); cerr != nil {
			log.From(ctx).Warn("refresh_cache_revoke_failed",
				slog.String("op", op),
				slog.String("err", cerr.Error()),
			)
		}
	}

	return nil
}

// Authenticate проверяет access-токен и возвращает профиль владельца.
// Проекция не содержит хэша пароля и refresh-токена.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*models.Profile, error) {
	const op = "service.auth.Authenticate"

	userID, err := s.validateAccessToken(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.storage.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	profile := user.Profile()
	return &profile, nil
}

// ChangePassword меняет пароль после проверки текущего.
// Действующая сессия при этом сохраняется.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	const op = "service.auth.ChangePassword"

	user, err := s.storage.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if !checkPassword(user.PasswordHash, oldPassword) {
		return fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if err := validatePassword(newPassword); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	hashed, err := s.hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.UpdateUserPassword(ctx, userID, hashed); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// UpdateAccount обновляет отображаемое имя и email.
func (s *Service) UpdateAccount(ctx context.Context, userID uuid.UUID, fullName, email string) (*models.Profile, error) {
	const op = "service.auth.UpdateAccount"

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidFullName)
	}

	user, err := s.storage.UpdateUserProfile(ctx, userID, fullName, normEmail)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	profile := user.Profile()
	return &profile, nil
}

// issueTokenPair выпускает новую пару access+refresh токенов и делает её
// авторитетной в хранилище. Если rotateFrom непустой, запись выполняется
// атомарной заменой rotateFrom -> новый токен; проигравший конкурентную
// ротацию вызов получает ErrTokenRevoked и ничего не меняет в хранилище.
func (s *Service) issueTokenPair(ctx context.Context, user *models.User, rotateFrom string) (*models.TokenPair, uuid.UUID, error) {
	const op = "service.auth.issueTokenPair"

	now := s.now().UTC()

	accessToken, err := s.generateAccessToken(ctx, user, now)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	refreshToken, err := s.generateRefreshToken(ctx, user.ID, now)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	refreshExpiresAt := now.Add(s.cfg.RefreshTokenTTL)

	if rotateFrom == "" {
		if err := s.storage.SetRefreshToken(ctx, user.ID, refreshToken, refreshExpiresAt); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
			}

			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
		}
	} else {
		swapped, err := s.storage.ReplaceRefreshToken(ctx, user.ID, rotateFrom, refreshToken, refreshExpiresAt)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
			}

			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
		}

		if !swapped {
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrTokenRevoked)
		}
	}

	s.cacheNewToken(ctx, user.ID, rotateFrom, refreshToken, refreshExpiresAt)

	return &models.TokenPair{
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		AccessExpiresAt: now.Add(s.cfg.AccessTokenTTL),
	}, user.ID, nil
}

// cacheNewToken отражает ротацию в кэше: старый токен помечается отозванным,
// новый записывается с остаточным TTL. Ошибки кэша не фатальны.
func (s *Service) cacheNewToken(ctx context.Context, userID uuid.UUID, oldToken, newToken string, expiresAt time.Time) {
	if s.rcache == nil {
		return
	}

	lg := log.From(ctx)

	if oldToken != "" {
		if err := s.rcache.MarkRevoked(ctx, oldToken); err != nil {
			lg.Warn("refresh_cache_revoke_failed", slog.String("err", err.Error()))
		}
	}

	entry := &cache.RefreshEntry{
		UserID:    userID,
		Revoked:   false,
		ExpiresAt: expiresAt,
	}
	if err := s.rcache.Set(ctx, newToken, entry, time.Until(expiresAt)); err != nil {
		lg.Warn("refresh_cache_set_failed", slog.String("err", err.Error()))
	}
}

// hashPassword хэширует пароль с помощью bcrypt; стоимость берётся из конфигурации.
func (s *Service) hashPassword(password string) (string, error) {
	const op = "service.auth.hashPassword"

	cost := s.cfg.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(bytes), nil
}

// checkPassword сравнивает пароль с хэшем. Любая ошибка — в том числе
// битый хэш — означает несовпадение, без паники и без различимых причин.
func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// validateEmail проверяет базовый формат email и обрезает пробелы снаружи.
func validateEmail(raw string) (string, error) {
	const op = "service.auth.validateEmail"

	email := strings.TrimSpace(raw)
	if email == "" {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	return strings.ToLower(email), nil
}

// validateUsername нормализует username к нижнему регистру и проверяет политику:
// длина 3..30, строчные латинские буквы, цифры, точка и подчёркивание.
func validateUsername(raw string) (string, error) {
	const op = "service.auth.validateUsername"

	username := strings.ToLower(strings.TrimSpace(raw))
	if len(username) < 3 || len(username) > 30 {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidUsername)
	}

	for _, r := range username {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '_':
		default:
			return "", fmt.Errorf("%s: %w", op, ErrInvalidUsername)
		}
	}

	return username, nil
}

// validatePassword проверяет минимальные требования к паролю.
// Политика по умолчанию: длина >= 8, хотя бы одна строчная, заглавная, цифра и спецсимвол.
func validatePassword(pw string) error {
	const op = "service.auth.validatePassword"

	if len(pw) == 0 {
		return fmt.Errorf("%s: %w", op, ErrEmptyPassword)
	}

	if len([]rune(pw)) < 8 {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if !(hasLower && hasUpper && hasDigit && hasSpecial) {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	return nil
}
