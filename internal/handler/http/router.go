package http

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/handler/http/response"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/metrics"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/httprate"
	"github.com/go-chi/jwtauth/v5"
)

// RouterOptions - cross-cutting settings of the HTTP surface
type RouterOptions struct {
	Logger         *slog.Logger
	LogLevel       slog.Level
	AllowedOrigins []string
	// RunsPerMinute caps payroll run submissions per company; 0 disables the limit.
	RunsPerMinute int
}

type Handlers struct {
	Payroll    PayrollHandler
	Leave      LeaveHandler
	Compliance ComplianceHandler
}

func NewRouter(JWTService jwt.Service, m *metrics.Metrics, h Handlers, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  opts.LogLevel,
		Schema: httplog.SchemaECS,
	}))

	r.Use(m.Middleware)
	r.Use(chiMiddleware.AllowContentEncoding("application/json"))
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired)
			r.Use(middleware.RequireCompany)

			r.Route("/payroll/runs", func(r chi.Router) {
				r.Get("/{year}/{month}", h.Payroll.GetRun)
				r.Get("/{year}/{month}/records", h.Payroll.ListSalaryRecords)

				// Manager only
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireManager)
					if opts.RunsPerMinute > 0 {
						r.Use(httprate.Limit(opts.RunsPerMinute, time.Minute,
							httprate.WithKeyFuncs(companyRateKey),
							httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
								response.TooManyRequests(w, "Too many payroll run submissions, retry later")
							}),
						))
					}
					r.Post("/", h.Payroll.ComputePayroll)
					r.Post("/{year}/{month}/compliance-sync", h.Payroll.SyncCompliance)
				})
			})

			r.Route("/compliance/{year}/{month}", func(r chi.Router) {
				r.Get("/", h.Compliance.GetObligations)

				// Manager only
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireManager)
					r.Post("/{type}/start", h.Compliance.StartFiling)
					r.Post("/{type}/file", h.Compliance.FileObligation)
				})
			})

			r.Route("/leave", func(r chi.Router) {
				r.Get("/balances/{employee_id}/{year}", h.Leave.GetBalances)

				// Manager only
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireManager)
					r.Post("/balances/{employee_id}/{year}/initialize", h.Leave.InitializeYear)
					r.Post("/usage", h.Leave.RecordUsage)
				})
			})
		})
	})
	return r
}

// NewLogger returns the JSON logger shared by request logging and services.
func NewLogger(app, env string, level slog.Level) *slog.Logger {
	logFormat := httplog.SchemaECS.Concise(false)
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", app),
		slog.String("env", env),
	)
}

func companyRateKey(r *http.Request) (string, error) {
	return "payroll-run:" + middleware.CompanyID(r.Context()), nil
}
