// transport/http собирает REST-поверхность auth-сервиса поверх chi.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/videotube/auth-service/internal/service"
	"github.com/videotube/auth-service/internal/transport/http/handlers"
	"github.com/videotube/auth-service/internal/transport/http/middleware"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger   *slog.Logger
	Timeout  time.Duration
	BasePath string // например, "/api/v1/users"; если пустой — роуты регистрируются на корне.
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc *service.Service, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),            // безопасно ловим паники
		middleware.RequestID(),          // формируем/прокидываем X-Request-Id (до логирования!)
		middleware.Logging(opts.Logger), // кладём request-scoped логгер в контекст и логируем
		middleware.Metrics(),            // счётчики и длительности по маршрутам
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout)) // общий дедлайн запроса
	}

	h := handlers.New(svc)
	authn := middleware.Authenticate(svc)

	if opts.BasePath != "" {
		sub := chi.NewRouter()
		registerRoutes(sub, h, authn)
		root.Mount(opts.BasePath, sub)
		return root
	}

	registerRoutes(root, h, authn)
	return root
}

// registerRoutes — единая точка регистрации всех REST-эндпоинтов.
func registerRoutes(r chi.Router, h *handlers.Handlers, authn middleware.Middleware) {
	// Публичные маршруты.
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/refresh-token", h.Refresh)

	// Защищённые маршруты — за гейтом проверки access-токена.
	r.Group(func(pr chi.Router) {
		pr.Use(authn)
		pr.Post("/logout", h.Logout)
		pr.Post("/change-password", h.ChangePassword)
		pr.Get("/current-user", h.CurrentUser)
		pr.Patch("/update-account", h.UpdateAccount)
	})
}
