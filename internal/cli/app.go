package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"benchbook/internal/audit"
	"benchbook/internal/blob"
	"benchbook/internal/config"
	"benchbook/internal/docstore"
	"benchbook/internal/ledger"
	"benchbook/internal/metrics"
	"benchbook/internal/notebook"
	"benchbook/internal/protocolstore"
	"benchbook/internal/render"
)

// App bundles the wired subsystems for command handlers.
type App struct {
	Config    config.Config
	Log       *zap.Logger
	Protocols *protocolstore.Store
	Ledger    *ledger.Ledger
	Notebook  *notebook.Notebook
	Renderer  *render.Renderer

	closers []func() error
}

// Close releases store handles and flushes the logger.
func (a *App) Close() {
	for _, fn := range a.closers {
		_ = fn()
	}
	_ = a.Log.Sync()
}

func openApp(ctx context.Context, opts *RootOptions) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Verbose && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}
	log, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Log: log}

	docs, err := openDocs(cfg.Storage)
	if err != nil {
		return nil, err
	}
	if closer, ok := docs.(interface{ Close() error }); ok {
		app.closers = append(app.closers, closer.Close)
	}

	dest, err := openBlob(ctx, cfg.Blob)
	if err != nil {
		return nil, err
	}

	auditLog, err := audit.NewFileLog(cfg.Reports.AuditPath, log)
	if err != nil {
		return nil, err
	}

	// A fresh registry per app keeps repeated opens in one process from
	// colliding on collector registration.
	rec, err := metrics.NewPrometheusRecorder(prometheus.NewRegistry())
	if err != nil {
		return nil, err
	}

	app.Protocols = protocolstore.New(docs, protocolstore.WithRecorder(rec))
	app.Ledger = ledger.New(docs, ledger.WithRecorder(rec))
	app.Notebook = notebook.New(docs, notebook.WithRecorder(rec))
	app.Renderer = render.New(dest,
		render.WithAudit(auditLog),
		render.WithLogger(log),
		render.WithActor(cfg.Reports.Actor),
	)
	return app, nil
}

func openDocs(sc config.Storage) (docstore.Store, error) {
	switch docstore.Driver(sc.Driver) {
	case docstore.DriverDir:
		return docstore.NewDir(sc.DataDir)
	case docstore.DriverMemory:
		return docstore.NewMemory(), nil
	case docstore.DriverSQLite:
		return docstore.NewSQLite(sc.SQLitePath)
	case docstore.DriverPostgres:
		return docstore.NewPostgres(sc.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", sc.Driver)
	}
}

func openBlob(ctx context.Context, bc config.Blob) (blob.Store, error) {
	switch blob.Driver(bc.Driver) {
	case blob.DriverFilesystem:
		return blob.NewFilesystem(bc.FSRoot)
	case blob.DriverS3:
		return blob.NewS3(ctx, blob.S3Config{Bucket: bc.S3Bucket, Region: bc.S3Region})
	case blob.DriverMemory:
		return blob.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", bc.Driver)
	}
}
