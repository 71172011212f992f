package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/videotube/auth-service/internal/storage"
)

// SetRefreshToken безусловно записывает новый refresh-токен (вход).
// Предыдущее значение, если оно было, перестаёт действовать.
func (s *Storage) SetRefreshToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error {
	const op = "storage.postgres.SetRefreshToken"

	query := `
		UPDATE users
		SET refresh_token = $2, refresh_expires_at = $3, updated_at = now()
		WHERE id = $1
	`

	cmdTag, err := s.db.Exec(ctx, query, id, token, expiresAt)
	if err != nil {
		return classify(op, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// ReplaceRefreshToken атомарно заменяет oldToken на newToken (ротация).
// Один UPDATE с предикатом по старому значению — это и есть compare-and-swap:
// из двух конкурентных ротаций с одним и тем же токеном выигрывает ровно одна.
// Возвращает:
//
//	(true, nil)  — хранимое значение совпало и заменено;
//	(false, nil) — пользователь существует, но токен уже другой (ротирован/отозван);
//	(false, ErrNotFound) — пользователь не найден.
func (s *Storage) ReplaceRefreshToken(ctx context.Context, id uuid.UUID, oldToken, newToken string, expiresAt time.Time) (bool, error) {
	const op = "storage.postgres.ReplaceRefreshToken"

	const upd = `
		UPDATE users
		SET refresh_token = $3, refresh_expires_at = $4, updated_at = now()
		WHERE id = $1 AND refresh_token = $2
		RETURNING id
	`

	var updated uuid.UUID
	err := s.db.QueryRow(ctx, upd, id, oldToken, newToken, expiresAt).Scan(&updated)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, classify(op, err)
	}

	const sel = `SELECT 1 FROM users WHERE id = $1`

	var one int
	err = s.db.QueryRow(ctx, sel, id).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return false, classify(op, err)
	}

	return false, nil
}

// ClearRefreshToken сбрасывает refresh-токен в NULL (выход).
// Повторный вызов для той же записи — no-op.
func (s *Storage) ClearRefreshToken(ctx context.Context, id uuid.UUID) error {
	const op = "storage.postgres.ClearRefreshToken"

	query := `
		UPDATE users
		SET refresh_token = NULL, refresh_expires_at = NULL, updated_at = now()
		WHERE id = $1
	`

	cmdTag, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return classify(op, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// ClearExpiredRefreshTokens сбрасывает все refresh-токены с истёкшим сроком.
func (s *Storage) ClearExpiredRefreshTokens(ctx context.Context, now time.Time) error {
	const op = "storage.postgres.ClearExpiredRefreshTokens"

	query := `
		UPDATE users
		SET refresh_token = NULL, refresh_expires_at = NULL, updated_at = now()
		WHERE refresh_expires_at IS NOT NULL AND refresh_expires_at <= $1
	`

	_, err := s.db.Exec(ctx, query, now)
	if err != nil {
		return classify(op, err)
	}

	return nil
}
