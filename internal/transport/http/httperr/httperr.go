// httperr стандартизирует ответы об ошибках HTTP-слоя.
// На вход — доменная ошибка сервисного слоя, на выход — корректный
// HTTP-статус и краткое безопасное сообщение без утечки внутренних деталей.
//
// Принципы маппинга:
//   - все причины отказа в аутентификации неразличимы снаружи: логин-ошибки
//     дают одно обобщённое сообщение, токен-ошибки — другое (клиенту нужно
//     понять лишь одно: пора логиниться заново);
//   - недоступность хранилища — отдельный ретраибельный 503, никогда не 401;
//   - всё неопознанное — 500 с единым безопасным текстом.
package httperr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/videotube/auth-service/internal/service"
	"github.com/videotube/auth-service/internal/storage"
)

// StatusClientClosedRequest — нестандартный код для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// ErrBadRequest — локальная ошибка разбора входного JSON.
var ErrBadRequest = errors.New("bad request")

// APIError — единый формат ошибки для клиента.
// Code — короткий стабильный код для машиночитаемой обработки.
// Message — безопасное человекочитаемое описание.
// RequestID — прокидывается из X-Request-Id, если есть (для трассировки).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP конвертирует доменную ошибку в HTTP-статус и унифицированный ответ.
func ToHTTP(err error) (int, ErrorResponse) {
	status, code, msg := classify(err)
	return status, ErrorResponse{
		Error: APIError{
			Code:    code,
			Message: msg,
		},
	}
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет корректный статус/тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// classify — таблица доменная ошибка -> (HTTP-статус, код, сообщение).
func classify(err error) (int, string, string) {
	switch {
	case err == nil:
		// Программная ошибка вызова: не маскируем баг "успешным" ответом.
		return http.StatusInternalServerError, "internal", "internal error"

	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "invalid_argument", "invalid argument"

	case errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrInvalidUsername),
		errors.Is(err, service.ErrInvalidFullName),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrEmptyPassword):
		return http.StatusBadRequest, "invalid_argument", "invalid argument"

	case errors.Is(err, service.ErrUsernameTaken),
		errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, "already_exists", "already exists"

	// Единое сообщение для всех провалов входа: не раскрываем, существует ли
	// пользователь и что именно не совпало.
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "unauthenticated", "invalid credentials"

	// Единое сообщение для всех токен-ошибок: просрочка, подделка и повторное
	// использование снаружи неразличимы.
	case errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrTokenRevoked):
		return http.StatusUnauthorized, "unauthenticated", "invalid or expired token"

	case errors.Is(err, storage.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable", "service unavailable"

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "deadline_exceeded", "deadline exceeded"

	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "canceled", "canceled"

	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}
