// handlers содержит REST-эндпоинты auth-сервиса.
// Здесь выполняется только разбор входа и маппинг данных/ошибок доменного
// слоя в HTTP; вся валидация и бизнес-логика — в пакете service.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/videotube/auth-service/internal/service"
	"github.com/videotube/auth-service/internal/transport/http/httperr"
)

// Handlers агрегирует зависимости эндпоинтов.
type Handlers struct {
	service *service.Service
}

func New(s *service.Service) *Handlers {
	return &Handlers{service: s}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через httperr.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(value); err != nil {
		return fmt.Errorf("%w: %v", httperr.ErrBadRequest, err)
	}

	return nil
}
