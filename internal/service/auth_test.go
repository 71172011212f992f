package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/videotube/auth-service/internal/config"
	"github.com/videotube/auth-service/internal/models"
	"github.com/videotube/auth-service/internal/storage"
	"github.com/videotube/auth-service/mocks"
)

func testCfg() config.AuthConfig {
	return config.AuthConfig{
		AccessSecret:    "unit-access-secret",
		RefreshSecret:   "unit-refresh-secret",
		AccessTokenTTL:  30 * time.Second,
		RefreshTokenTTL: 24 * time.Hour,
		BcryptCost:      4, // минимальная стоимость, чтобы тесты не тормозили
		Issuer:          "auth-service",
		Audience:        []string{"videotube"},
	}
}

func newSvc(t *testing.T) (*Service, *mocks.MockStorage, *gomock.Controller) {
	t.Helper()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStorage(ctrl)
	svc := New(st, testCfg())
	return svc, st, ctrl
}

func mustHashPW(t *testing.T, svc *Service, pw string) string {
	t.Helper()
	h, err := svc.hashPassword(pw)
	require.NoError(t, err)
	return h
}

func TestRegisterUser_OK(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()

	st.EXPECT().UserByUsername(gomock.Any(), "alice").Return(nil, storage.ErrNotFound)
	st.EXPECT().UserByEmail(gomock.Any(), "alice@example.com").Return(nil, storage.ErrNotFound)
	st.EXPECT().SaveUser(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, u *models.User) error {
			require.Equal(t, "alice", u.Username)
			require.Equal(t, "alice@example.com", u.Email)
			require.NotEmpty(t, u.PasswordHash)
			require.NotEqual(t, "Abcdef1!", u.PasswordHash)
			return nil
		})
	st.EXPECT().SetRefreshToken(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	tp, uid, err := svc.RegisterUser(ctx, "Alice", "Alice@Example.com", "Alice Liddell", "Abcdef1!")
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, uid)
	require.NotEmpty(t, tp.AccessToken)
	require.NotEmpty(t, tp.RefreshToken)
	require.WithinDuration(t, time.Now().Add(svc.cfg.AccessTokenTTL), tp.AccessExpiresAt, 2*time.Second)
}

func TestRegisterUser_InvalidArguments(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()

	_, _, err := svc.RegisterUser(ctx, "a!", "a@e.com", "A", "Abcdef1!")
	require.ErrorIs(t, err, ErrInvalidUsername)

	_, _, err = svc.RegisterUser(ctx, "alice", "not-an-email", "A", "Abcdef1!")
	require.ErrorIs(t, err, ErrInvalidEmail)

	_, _, err = svc.RegisterUser(ctx, "alice", "a@e.com", "   ", "Abcdef1!")
	require.ErrorIs(t, err, ErrInvalidFullName)

	_, _, err = svc.RegisterUser(ctx, "alice", "a@e.com", "A", "")
	require.ErrorIs(t, err, ErrEmptyPassword)

	_, _, err = svc.RegisterUser(ctx, "alice", "a@e.com", "A", "short")
	require.ErrorIs(t, err, ErrWeakPassword)
}

func TestRegisterUser_Taken(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()

	// Занят username.
	st.EXPECT().UserByUsername(gomock.Any(), "alice").
		Return(&models.User{ID: uuid.New(), Username: "alice"}, nil)
	_, _, err := svc.RegisterUser(ctx, "alice", "a@e.com", "A", "Abcdef1!")
	require.ErrorIs(t, err, ErrUsernameTaken)

	// Занят email.
	st.EXPECT().UserByUsername(gomock.Any(), "alice").Return(nil, storage.ErrNotFound)
	st.EXPECT().UserByEmail(gomock.Any(), "a@e.com").
		Return(&models.User{ID: uuid.New(), Email: "a@e.com"}, nil)
	_, _, err = svc.RegisterUser(ctx, "alice", "a@e.com", "A", "Abcdef1!")
	require.ErrorIs(t, err, ErrEmailTaken)

	// Гонка на вставке: предварительные проверки прошли, SaveUser упёрся в уникальность.
	st.EXPECT().UserByUsername(gomock.Any(), "alice").Return(nil, storage.ErrNotFound)
	st.EXPECT().UserByEmail(gomock.Any(), "a@e.com").Return(nil, storage.ErrNotFound)
	st.EXPECT().SaveUser(gomock.Any(), gomock.Any()).Return(storage.ErrAlreadyExists)
	_, _, err = svc.RegisterUser(ctx, "alice", "a@e.com", "A", "Abcdef1!")
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestLoginUser_OK_ByUsernameAndEmail(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()
	pw := "Abcdef1!"
	user := &models.User{
		ID:           uuid.New(),
		Username:     "alice",
		Email:        "alice@example.com",
		FullName:     "Alice Liddell",
		PasswordHash: mustHashPW(t, svc, pw),
	}

	st.EXPECT().UserByUsername(gomock.Any(), "alice").Return(user, nil)
	st.EXPECT().SetRefreshToken(gomock.Any(), user.ID, gomock.Any(), gomock.Any()).Return(nil)

	tp, uid, err := svc.LoginUser(ctx, "Alice", pw)
	require.NoError(t, err)
	require.Equal(t, user.ID, uid)
	require.NotEmpty(t, tp.AccessToken)
	require.NotEmpty(t, tp.RefreshToken)

	// Логин с email попадает в поиск по email.
	st.EXPECT().UserByEmail(gomock.Any(), "alice@example.com").Return(user, nil)
	st.EXPECT().SetRefreshToken(gomock.Any(), user.ID, gomock.Any(), gomock.Any()).Return(nil)

	_, uid, err = svc.LoginUser(ctx, "Alice@Example.com", pw)
	require.NoError(t, err)
	require.Equal(t, user.ID, uid)
}

// Провал входа не раскрывает, что именно не совпало: ошибка при неизвестном
// пользователе и при неверном пароле одна и та же.
func TestLoginUser_NoEnumerationSignal(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()

	st.EXPECT().UserByUsername(gomock.Any(), "ghost").Return(nil, storage.ErrNotFound)
	_, _, errGhost := svc.LoginUser(ctx, "ghost", "whatever")
	require.ErrorIs(t, errGhost, ErrInvalidCredentials)

	user := &models.User{
		ID:           uuid.New(),
		Username:     "alice",
		PasswordHash: mustHashPW(t, svc, "Abcdef1!"),
	}
	st.EXPECT().UserByUsername(gomock.Any(), "alice").Return(user, nil)
	_, _, errWrongPW := svc.LoginUser(ctx, "alice", "WRONG-pw-1!")
	require.ErrorIs(t, errWrongPW, ErrInvalidCredentials)

	require.Equal(t, errors.Unwrap(errGhost), errors.Unwrap(errWrongPW))

	// Пустой логин/пароль — тоже неразличимы.
	_, _, err := svc.LoginUser(ctx, "", "pw")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.LoginUser(ctx, "alice", "")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUser_StorageErrorPropagated(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().UserByUsername(gomock.Any(), "alice").Return(nil, storage.ErrUnavailable)

	_, _, err := svc.LoginUser(context.Background(), "alice", "Abcdef1!")
	require.ErrorIs(t, err, storage.ErrUnavailable)
	require.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefreshTokens_OK_Rotation(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()
	user := &models.User{ID: uuid.New(), Username: "alice", Email: "a@e.com"}

	now := time.Now()
	old, err := svc.generateRefreshToken(ctx, user.ID, now.Add(-time.Hour))
	require.NoError(t, err)

	var rotatedTo string
	st.EXPECT().UserByID(gomock.Any(), user.ID).Return(user, nil)
	st.EXPECT().ReplaceRefreshToken(gomock.Any(), user.ID, old, gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ uuid.UUID, _, newToken string, _ time.Time) (bool, error) {
			rotatedTo = newToken
			return true, nil
		})

	tp, uid, err := svc.RefreshTokens(ctx, old)
	require.NoError(t, err)
	require.Equal(t, user.ID, uid)
	require.Equal(t, rotatedTo, tp.RefreshToken)
	require.NotEqual(t, old, tp.RefreshToken)
}

func TestRefreshTokens_CryptoFailures(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()

	// Мусор вместо токена.
	_, _, err := svc.RefreshTokens(ctx, "not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)

	// Access-токен вместо refresh: другой секрет, подпись не сходится.
	user := &models.User{ID: uuid.New(), Username: "alice", Email: "a@e.com"}
	access, err := svc.generateAccessToken(ctx, user, time.Now().UTC())
	require.NoError(t, err)
	_, _, err = svc.RefreshTokens(ctx, access)
	require.ErrorIs(t, err, ErrInvalidToken)

	// Просроченный refresh.
	past := time.Now().Add(-48 * time.Hour)
	expired, err := svc.generateRefreshToken(ctx, user.ID, past)
	require.NoError(t, err)
	_, _, err = svc.RefreshTokens(ctx, expired)
	require.ErrorIs(t, err, ErrTokenExpired)
}

// Токен, уже вытесненный ротацией, отклоняется compare-and-swap'ом,
// даже если криптографически он ещё действителен.
func TestRefreshTokens_ReusedToken_Revoked(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()
	user := &models.User{ID: uuid.New(), Username: "alice", Email: "a@e.com"}

	old, err := svc.generateRefreshToken(ctx, user.ID, time.Now())
	require.NoError(t, err)

	st.EXPECT().UserByID(gomock.Any(), user.ID).Return(user, nil)
	st.EXPECT().ReplaceRefreshToken(gomock.Any(), user.ID, old, gomock.Any(), gomock.Any()).
		Return(false, nil)

	_, _, err = svc.RefreshTokens(ctx, old)
	require.ErrorIs(t, err, ErrTokenRevoked)
}

func TestRefreshTokens_OwnerGone(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()

	token, err := svc.generateRefreshToken(ctx, userID, time.Now())
	require.NoError(t, err)

	st.EXPECT().UserByID(gomock.Any(), userID).Return(nil, storage.ErrNotFound)

	_, _, err = svc.RefreshTokens(ctx, token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestLogoutUser_Idempotent(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()
	user := &models.User{ID: uuid.New(), Username: "alice", RefreshToken: "stored-token"}

	// Первый выход сбрасывает токен.
	st.EXPECT().UserByID(gomock.Any(), user.ID).Return(user, nil)
	st.EXPECT().ClearRefreshToken(gomock.Any(), user.ID).Return(nil)
	require.NoError(t, svc.LogoutUser(ctx, user.ID))

	// Повторный выход — no-op без ошибки.
	loggedOut := &models.User{ID: user.ID, Username: "alice"}
	st.EXPECT().UserByID(gomock.Any(), user.ID).Return(loggedOut, nil)
	st.EXPECT().ClearRefreshToken(gomock.Any(), user.ID).Return(nil)
	require.NoError(t, svc.LogoutUser(ctx, user.ID))

	// Пользователь уже удалён — тоже не ошибка.
	st.EXPECT().UserByID(gomock.Any(), user.ID).Return(nil, storage.ErrNotFound)
	require.NoError(t, svc.LogoutUser(ctx, user.ID))
}

func TestAuthenticate_OK_ProjectionHasNoSecrets(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()
	user := &models.User{
		ID:           uuid.New(),
		Username:     "alice",
		Email:        "a@e.com",
		FullName:     "Alice Liddell",
		PasswordHash: "bcrypt-hash",
		RefreshToken: "stored-refresh",
	}

	access, err := svc.generateAccessToken(ctx, user, time.Now().UTC())
	require.NoError(t, err)

	st.EXPECT().UserByID(gomock.Any(), user.ID).Return(user, nil)

	profile, err := svc.Authenticate(ctx, access)
	require.NoError(t, err)
	require.Equal(t, user.ID, profile.ID)
	require.Equal(t, "alice", profile.Username)
	require.Equal(t, "Alice Liddell", profile.FullName)
}

func TestAuthenticate_Failures(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()

	// Мусор.
	_, err := svc.Authenticate(ctx, "not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)

	// Refresh-токен вместо access: другой секрет.
	uid := uuid.New()
	refresh, err := svc.generateRefreshToken(ctx, uid, time.Now())
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, refresh)
	require.ErrorIs(t, err, ErrInvalidToken)

	// Валидный токен, но аккаунт исчез.
	user := &models.User{ID: uid, Username: "alice", Email: "a@e.com"}
	access, err := svc.generateAccessToken(ctx, user, time.Now().UTC())
	require.NoError(t, err)
	st.EXPECT().UserByID(gomock.Any(), uid).Return(nil, storage.ErrNotFound)
	_, err = svc.Authenticate(ctx, access)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestChangePassword(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()
	user := &models.User{
		ID:           uuid.New(),
		Username:     "alice",
		PasswordHash: mustHashPW(t, svc, "OldPass1!"),
	}

	// Неверный текущий пароль.
	st.EXPECT().UserByID(gomock.Any(), user.ID).Return(user, nil)
	err := svc.ChangePassword(ctx, user.ID, "WrongOld1!", "NewPass1!")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	// Новый пароль слабый.
	st.EXPECT().UserByID(gomock.Any(), user.ID).Return(user, nil)
	err = svc.ChangePassword(ctx, user.ID, "OldPass1!", "weak")
	require.ErrorIs(t, err, ErrWeakPassword)

	// Ok: в хранилище уходит хэш нового пароля, а не сам пароль.
	st.EXPECT().UserByID(gomock.Any(), user.ID).Return(user, nil)
	st.EXPECT().UpdateUserPassword(gomock.Any(), user.ID, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ uuid.UUID, hash string) error {
			require.NotEqual(t, "NewPass1!", hash)
			require.True(t, checkPassword(hash, "NewPass1!"))
			return nil
		})
	require.NoError(t, svc.ChangePassword(ctx, user.ID, "OldPass1!", "NewPass1!"))
}

func TestUpdateAccount(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()

	// Невалидный email.
	_, err := svc.UpdateAccount(ctx, userID, "Alice", "broken")
	require.ErrorIs(t, err, ErrInvalidEmail)

	// Конфликт email.
	st.EXPECT().UpdateUserProfile(gomock.Any(), userID, "Alice", "new@e.com").
		Return(nil, storage.ErrAlreadyExists)
	_, err = svc.UpdateAccount(ctx, userID, "Alice", "new@e.com")
	require.ErrorIs(t, err, ErrEmailTaken)

	// Ok.
	updated := &models.User{ID: userID, Username: "alice", Email: "new@e.com", FullName: "Alice"}
	st.EXPECT().UpdateUserProfile(gomock.Any(), userID, "Alice", "new@e.com").
		Return(updated, nil)
	profile, err := svc.UpdateAccount(ctx, userID, "Alice", "new@e.com")
	require.NoError(t, err)
	require.Equal(t, "new@e.com", profile.Email)
}

// Сквозной сценарий: login -> authenticate -> refresh -> повторный refresh
// со старым токеном отклоняется.
func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()
	pw := "Correct1!"
	user := &models.User{
		ID:           uuid.New(),
		Username:     "alice",
		Email:        "alice@example.com",
		FullName:     "Alice Liddell",
		PasswordHash: mustHashPW(t, svc, pw),
	}

	// Хранимый refresh-токен эмулируем одной переменной — как единственное
	// поле на записи пользователя.
	var stored string

	st.EXPECT().UserByUsername(gomock.Any(), "alice").Return(user, nil)
	st.EXPECT().SetRefreshToken(gomock.Any(), user.ID, gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ uuid.UUID, token string, _ time.Time) error {
			stored = token
			return nil
		})

	pair, _, err := svc.LoginUser(ctx, "alice", pw)
	require.NoError(t, err)
	require.Equal(t, stored, pair.RefreshToken)

	// authenticate(access) -> профиль.
	st.EXPECT().UserByID(gomock.Any(), user.ID).Return(user, nil)
	profile, err := svc.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "alice", profile.Username)

	// refresh(refresh) -> новая пара, хранимое значение заменено.
	cas := func(_ context.Context, _ uuid.UUID, oldToken, newToken string, _ time.Time) (bool, error) {
		if stored != oldToken {
			return false, nil
		}
		stored = newToken
		return true, nil
	}
	st.EXPECT().UserByID(gomock.Any(), user.ID).Return(user, nil).Times(2)
	st.EXPECT().ReplaceRefreshToken(gomock.Any(), user.ID, gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(cas).Times(2)

	pair2, _, err := svc.RefreshTokens(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, pair2.RefreshToken)
	require.Equal(t, stored, pair2.RefreshToken)

	// Старый refresh-токен больше не равен хранимому значению.
	_, _, err = svc.RefreshTokens(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrTokenRevoked)
}
