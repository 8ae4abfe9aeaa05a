package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ledgerworks/ledgercore/internal/transport/httpapi/handler"
	"github.com/ledgerworks/ledgercore/internal/transport/httpapi/middleware"
	"github.com/ledgerworks/ledgercore/pkg/logger"
)

// Config holds router configuration
type Config struct {
	Logger               *logger.Logger
	AllowedOrigins       []string
	RequestsPerSecond    float64
	RateBurst            int
	AccountHandler       *handler.AccountHandler
	JournalHandler       *handler.JournalHandler
	DocumentHandler      *handler.DocumentHandler
	ReportHandler        *handler.ReportHandler
	TaxHandler           *handler.TaxHandler
	ConsolidationHandler *handler.ConsolidationHandler
	HealthHandler        *handler.HealthHandler
	// JWTMiddleware guards /api/v1 when set; without it the API is open
	JWTMiddleware func(http.Handler) http.Handler
}

// NewRouter creates a new HTTP router
func NewRouter(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(chimiddleware.Compress(5))
	r.Use(middleware.RateLimit(cfg.RequestsPerSecond, cfg.RateBurst))

	// Health check endpoints (no authentication required)
	r.Get("/health", handler.GetHealth)
	r.Get("/health/live", handler.GetLiveness)
	if cfg.HealthHandler != nil {
		r.Get("/health/ready", cfg.HealthHandler.GetReadiness)
		r.Get("/health/detailed", cfg.HealthHandler.GetHealthDetailed)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.JWTMiddleware != nil {
			r.Use(cfg.JWTMiddleware)
		}

		// Chart of accounts and per-account projections
		if cfg.AccountHandler != nil {
			r.Route("/accounts", func(r chi.Router) {
				r.Post("/", cfg.AccountHandler.CreateAccount)
				r.Get("/", cfg.AccountHandler.ListAccounts)
				r.Get("/tree", cfg.AccountHandler.GetTree)
				r.Get("/{id}", cfg.AccountHandler.GetAccount)
				r.Put("/{id}", cfg.AccountHandler.UpdateAccount)
				r.Delete("/{id}", cfg.AccountHandler.DeleteAccount)
				r.Put("/{id}/parent", cfg.AccountHandler.Reparent)
				r.Get("/{id}/balance", cfg.AccountHandler.GetBalance)
				r.Get("/{id}/ledger", cfg.AccountHandler.GetLedger)
				r.Post("/{id}/reconcile", cfg.AccountHandler.Reconcile)
			})
		}

		// Journal entry lifecycle
		if cfg.JournalHandler != nil {
			r.Route("/journal-entries", func(r chi.Router) {
				r.Post("/", cfg.JournalHandler.CreateJournalEntry)
				r.Get("/", cfg.JournalHandler.ListJournalEntries)
				r.Get("/{id}", cfg.JournalHandler.GetJournalEntry)
				r.Put("/{id}", cfg.JournalHandler.UpdateJournalEntry)
				r.Post("/{id}/post", cfg.JournalHandler.PostJournalEntry)
				r.Post("/{id}/reverse", cfg.JournalHandler.ReverseJournalEntry)
			})
		}

		// Business documents
		if cfg.DocumentHandler != nil {
			r.Get("/documents/types", cfg.DocumentHandler.ListDocumentTypes)
			r.Post("/documents/{type}", cfg.DocumentHandler.RecordDocument)
		}

		if cfg.ReportHandler != nil {
			r.Get("/reports/trial-balance", cfg.ReportHandler.GetTrialBalance)
		}

		if cfg.TaxHandler != nil {
			r.Post("/tax/split", cfg.TaxHandler.Split)
			r.Post("/tax/summary", cfg.TaxHandler.Summary)
		}

		if cfg.ConsolidationHandler != nil {
			r.Route("/consolidation", func(r chi.Router) {
				r.Post("/records", cfg.ConsolidationHandler.CreateRecord)
				r.Get("/records", cfg.ConsolidationHandler.ListRecords)
				r.Get("/records/{id}", cfg.ConsolidationHandler.GetRecord)
				r.Put("/records/{id}/spent", cfg.ConsolidationHandler.UpdateSpent)
				r.Get("/report", cfg.ConsolidationHandler.GetReport)
			})
		}
	})

	return r
}
