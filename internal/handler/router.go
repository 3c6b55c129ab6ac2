package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"securedocs/internal/auth"
	"securedocs/internal/logging"
	"securedocs/internal/metrics"
)

type RouterDeps struct {
	Auth    *AuthHandler
	Files   *FileHandler
	Users   *UserHandler
	System  *SystemHandler
	Tokens  *auth.TokenManager
	Metrics *metrics.Metrics
	Log     logging.Logger
	// RequestTimeout bounds every request. Zero disables it.
	RequestTimeout time.Duration
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(d.Log))
	r.Use(middleware.Recoverer)
	r.Use(d.Metrics.Instrument)
	if d.RequestTimeout > 0 {
		r.Use(middleware.Timeout(d.RequestTimeout))
	}

	r.Get("/", d.System.Root)
	r.Get("/health", d.System.Health)
	r.Handle("/metrics", d.Metrics.Handler())

	h := func(fn HandlerWithError) http.HandlerFunc { return wrap(d.Log, fn) }

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", h(d.Auth.Signup))
			r.Post("/resend-verification", h(d.Auth.ResendVerification))
			r.Post("/verify-email", h(d.Auth.VerifyEmail))
			r.Get("/verify-email", h(d.Auth.VerifyEmailLink))
			r.Get("/verify/{sealed}", h(d.Auth.VerifySealed))
			r.Post("/login", h(d.Auth.Login))
			r.With(d.Tokens.Authenticate).Get("/me", h(d.Auth.Me))
		})

		r.Group(func(r chi.Router) {
			r.Use(d.Tokens.Authenticate)

			r.Route("/files", func(r chi.Router) {
				r.Post("/upload", h(d.Files.UploadFile))
				r.Get("/list", h(d.Files.ListFiles))
				r.Get("/uploaded", h(d.Files.ListUploaded))
				r.Get("/download-link/{file_id}", h(d.Files.CreateDownloadLink))
				r.Get("/secure-download/{token}", h(d.Files.SecureDownload))
				r.Get("/download-history", h(d.Files.DownloadHistory))
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/", h(d.Users.List))
				r.Get("/profile", h(d.Users.Profile))
			})
		})
	})

	return r
}

// accessLog writes one structured line per request.
func accessLog(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info(r.Context(), "request",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}
