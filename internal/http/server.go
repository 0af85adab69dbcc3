package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"ternak/internal/backup"
	applog "ternak/internal/log"
	"ternak/internal/middleware/ratelimit"
	"ternak/internal/middleware/security"
	"ternak/internal/middleware/trace"
	"ternak/internal/services"
	appweb "ternak/web"
)

// Pinger reports whether the store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tune the server. Zero values pick the defaults.
type Options struct {
	Addr           string
	MaxUploadBytes int64
	Logger         *applog.Logger
	Now            func() time.Time
}

type Server struct {
	http.Server
	templates *template.Template
	ledger    *services.LedgerService
	exporter  *backup.Exporter
	importer  *backup.Importer
	store     Pinger

	detector  *security.Detector
	limiter   *ratelimit.Limiter
	tracer    *trace.Middleware
	maxUpload int64
	now       func() time.Time
	started   time.Time

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates, registers every route and wraps
// the mux in the middleware chain.
func NewServer(opts Options, ledger *services.LedgerService, exporter *backup.Exporter, importer *backup.Importer, store Pinger) (*Server, error) {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}

	s := &Server{
		templates: t,
		ledger:    ledger,
		exporter:  exporter,
		importer:  importer,
		store:     store,
		detector:  security.NewDetector(),
		limiter:   ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		maxUpload: opts.MaxUploadBytes,
		now:       opts.Now,
		started:   time.Now(),
	}
	s.tracer = trace.NewMiddleware(opts.Logger, s.detector.ClientIP)

	mux := http.NewServeMux()
	mux.Handle("GET /static/", security.StaticAssets(3600)(http.StripPrefix("/static/", http.FileServer(http.FS(static)))))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /{$}", s.handleDashboard)

	mux.HandleFunc("GET /kebutuhan", s.handleFeedList)
	mux.HandleFunc("POST /kebutuhan", s.handleFeedCreate)
	mux.HandleFunc("GET /kebutuhan/edit/{id}", s.handleFeedEdit)
	mux.HandleFunc("POST /kebutuhan/edit/{id}", s.handleFeedUpdate)
	mux.HandleFunc("POST /kebutuhan/delete/{id}", s.handleFeedDelete)

	mux.HandleFunc("GET /add", s.handleExpenseForm)
	mux.HandleFunc("POST /add", s.handleExpenseCreate)
	mux.HandleFunc("POST /add/delete/{id}", s.handleExpenseDelete)

	mux.HandleFunc("GET /ayam", s.handleStockList)
	mux.HandleFunc("POST /ayam", s.handleStockCreate)
	mux.HandleFunc("GET /ayam/edit/{id}", s.handleStockEdit)
	mux.HandleFunc("POST /ayam/edit/{id}", s.handleStockUpdate)
	mux.HandleFunc("POST /ayam/delete/{id}", s.handleStockDelete)

	mux.HandleFunc("GET /pemasukan", s.handleIncomeList)
	mux.HandleFunc("POST /pemasukan", s.handleIncomeCreate)
	mux.HandleFunc("POST /pemasukan/delete/{id}", s.handleIncomeDelete)

	mux.HandleFunc("GET /export", s.handleBackupPage)
	mux.HandleFunc("GET /export/json", s.handleExportJSON)
	mux.HandleFunc("GET /export/db", s.handleExportDB)
	mux.HandleFunc("POST /import/full", s.handleImportJSON)
	mux.HandleFunc("POST /import/db", s.handleImportDB)
	mux.HandleFunc("POST /backup/clear", s.handleClear)

	mux.HandleFunc("GET /assets", s.handleAssetList)
	mux.HandleFunc("POST /assets", s.handleAssetCreate)
	mux.HandleFunc("POST /assets/delete/{id}", s.handleAssetDelete)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) { s.notFound(w, r, "") })

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ClientIP, s.handleRateLimited)(handler)
	handler = s.detector.Middleware(handler)
	handler = security.Headers(security.DefaultHeadersConfig())(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Shutdown stops the limiter's cleanup goroutine and drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, http.StatusTooManyRequests, "Terlalu banyak permintaan, coba lagi sebentar lagi")
}

// tenant resolves the ?asset= of the request against the stored assets and
// returns the page skeleton for it. It writes the response itself and
// returns false when the asset does not exist or the store fails.
func (s *Server) tenant(w http.ResponseWriter, r *http.Request, title string) (page, bool) {
	assetID, err := assetParam(r)
	if err != nil {
		s.notFound(w, r, "Aset tidak ditemukan")
		return page{}, false
	}

	assets, err := s.ledger.ListAssets(r.Context())
	if err != nil {
		s.serverError(w, r, applog.OpList, err)
		return page{}, false
	}
	for _, a := range assets {
		if a.ID == assetID {
			return page{Title: title, AssetID: a.ID, Asset: a, Assets: assets}, true
		}
	}
	s.notFound(w, r, "Aset tidak ditemukan")
	return page{}, false
}

// mutationAsset resolves the tenant of a form post without loading the
// asset list.
func (s *Server) mutationAsset(w http.ResponseWriter, r *http.Request) (int64, bool) {
	assetID, err := assetParam(r)
	if err == nil {
		_, err = s.ledger.GetAsset(r.Context(), assetID)
	}
	if err != nil {
		s.fail(w, r, RedirectTo("/"), applog.OpRead, err)
		return 0, false
	}
	return assetID, true
}
