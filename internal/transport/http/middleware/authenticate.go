package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/videotube/auth-service/internal/models"
	"github.com/videotube/auth-service/internal/service"
	"github.com/videotube/auth-service/internal/transport/http/httperr"
)

// Authenticator — часть сервисного слоя, нужная для проверки access-токена.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*models.Profile, error)
}

// Authenticate — гейт защищённых маршрутов: достаёт Bearer-токен из
// Authorization, проверяет его через сервис и кладёт профиль владельца
// в контекст. Отсутствующий/невалидный токен — 401, дальше запрос не идёт.
func Authenticate(auth Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				httperr.WriteError(w, r, service.ErrInvalidToken)
				return
			}

			profile, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				httperr.WriteError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), CtxProfile, profile)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ProfileFrom возвращает профиль аутентифицированного пользователя из контекста.
func ProfileFrom(ctx context.Context) (*models.Profile, bool) {
	profile, ok := ctx.Value(CtxProfile).(*models.Profile)
	return profile, ok && profile != nil
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) || len(auth) == len(prefix) {
		return ""
	}

	return strings.TrimSpace(auth[len(prefix):])
}
