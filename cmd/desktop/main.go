// Package main provides the desktop companion server. It hosts the
// offline queue, draft store and sync engine behind a localhost
// REST/WebSocket surface for the desktop UI.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/theonlywayisdigital/donedex-sub004/cmd/desktop/handlers"
	"github.com/theonlywayisdigital/donedex-sub004/internal/config"
	"github.com/theonlywayisdigital/donedex-sub004/internal/crypto"
	"github.com/theonlywayisdigital/donedex-sub004/internal/drafts"
	"github.com/theonlywayisdigital/donedex-sub004/internal/kvstore"
	"github.com/theonlywayisdigital/donedex-sub004/internal/logging"
	"github.com/theonlywayisdigital/donedex-sub004/internal/media"
	"github.com/theonlywayisdigital/donedex-sub004/internal/netmon"
	"github.com/theonlywayisdigital/donedex-sub004/internal/remote"
	synceng "github.com/theonlywayisdigital/donedex-sub004/internal/sync"
	"github.com/theonlywayisdigital/donedex-sub004/internal/sync/scheduler"
	"github.com/theonlywayisdigital/donedex-sub004/internal/syncqueue"
)

// version is stamped at build time via -ldflags.
var version = "dev"

const probeTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("donedex-sync desktop %s\n", version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logWriter(cfg), logLevel(cfg.Log.Level))

	if err := run(cfg); err != nil {
		logging.Error("desktop server exited", err)
		os.Exit(1)
	}
}

// run wires the stores, engine, scheduler and HTTP surface, then
// serves until SIGINT/SIGTERM.
func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Remote.BaseURL == "" {
		return fmt.Errorf("remote.base_url not configured")
	}
	if cfg.Blob.Endpoint == "" {
		return fmt.Errorf("blob.endpoint not configured")
	}

	store, err := kvstore.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	queue := syncqueue.New(store)
	draftStore := drafts.New(store)

	probeURL := cfg.Sync.ProbeURL
	if probeURL == "" {
		probeURL = cfg.Remote.BaseURL
	}
	monitor := netmon.New(netmon.NewHTTPProber(probeURL, probeTimeout), cfg.ProbeInterval())
	monitor.Initialize(ctx)
	defer monitor.Stop()

	creds := crypto.NewCredentialStore(cfg.DataDir)
	records := remote.NewClient(remote.ClientConfig{
		BaseURL: cfg.Remote.BaseURL,
		Token:   remoteToken(cfg, creds),
		Timeout: cfg.RemoteTimeout(),
	})
	blobs, err := remote.NewMinIOStore(cfg.Blob.Endpoint, cfg.Blob.Bucket,
		cfg.Blob.AccessKey, blobSecret(cfg, creds), cfg.Blob.UseSSL)
	if err != nil {
		return fmt.Errorf("blob store: %w", err)
	}

	files, err := media.NewFileStore(filepath.Join(cfg.DataDir, "media"))
	if err != nil {
		return fmt.Errorf("media store: %w", err)
	}

	engine := synceng.New(synceng.Deps{
		Queue:       queue,
		Drafts:      draftStore,
		Monitor:     monitor,
		Records:     records,
		Blobs:       blobs,
		Compressor:  media.NewCompressor(cfg.Media.MaxDimension, cfg.Media.JPEGQuality),
		Photos:      media.NewLocalSource(files),
		Store:       store,
		ItemTimeout: cfg.ItemTimeout(),
	})

	sched := scheduler.NewScheduler(engine, monitor, cfg.PeriodicInterval())
	sched.Start(ctx)
	defer sched.Stop()

	hub := NewWSHub()
	bindEvents(hub, engine, monitor, queue, draftStore)

	syncHandler := handlers.NewSyncHandler(engine, monitor)
	syncHandler.SetWebSocketHub(hub)
	queueHandler := handlers.NewQueueHandler(queue, engine)
	queueHandler.SetWebSocketHub(hub)
	draftHandler := handlers.NewDraftHandler(draftStore)

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: newRouter(syncHandler, queueHandler, draftHandler, hub),
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("desktop server listening", map[string]interface{}{
			"addr":    cfg.Addr(),
			"version": version,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logging.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn("http shutdown incomplete", map[string]interface{}{"error": err.Error()})
	}

	// Let an in-flight drain reach an item boundary before the store
	// closes underneath it.
	deadline := time.Now().Add(2 * time.Second)
	for engine.Status().IsSyncing && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}

	return nil
}

// newRouter assembles the REST and WebSocket routes.
func newRouter(syncHandler *handlers.SyncHandler, queueHandler *handlers.QueueHandler, draftHandler *handlers.DraftHandler, hub *WSHub) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","service":"donedex-sync","version":%q}`, version)
	})

	mux.HandleFunc("/api/sync/status", syncHandler.GetStatus)
	mux.HandleFunc("/api/sync/now", syncHandler.TriggerSync)

	mux.HandleFunc("/api/queue", queueHandler.ListItems)
	mux.HandleFunc("/api/queue/retry-all", queueHandler.RetryAll)
	mux.HandleFunc("/api/queue/{id}", queueHandler.DeleteItem)
	mux.HandleFunc("/api/queue/{id}/retry", queueHandler.RetryItem)

	mux.HandleFunc("/api/drafts", draftHandler.ListDrafts)
	mux.HandleFunc("/api/drafts/{reportId}", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			draftHandler.GetDraft(w, r)
		case http.MethodPut:
			draftHandler.PutDraft(w, r)
		case http.MethodDelete:
			draftHandler.DeleteDraft(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/ws", HandleWebSocket(hub))

	return mux
}

// bindEvents forwards engine, monitor and store observations to the
// WebSocket hub. Engine notifications carry no drain phase, so the
// previous syncing flag tells started, progress and completed apart.
func bindEvents(hub *WSHub, engine *synceng.Engine, monitor *netmon.Monitor, queue *syncqueue.Queue, draftStore *drafts.Store) {
	var mu sync.Mutex
	var wasSyncing bool
	engine.Subscribe(func(isSyncing bool, pending int) {
		mu.Lock()
		prior := wasSyncing
		wasSyncing = isSyncing
		mu.Unlock()

		switch {
		case isSyncing && !prior:
			hub.BroadcastSyncStarted(pending)
		case isSyncing:
			hub.BroadcastSyncProgress(pending)
		case prior:
			hub.BroadcastSyncCompleted(pending)
		default:
			// Pending count pushed outside a drain.
			hub.BroadcastQueueUpdated(pending)
		}
	})

	monitor.Subscribe(func(online bool) {
		hub.BroadcastNetworkChanged(online)
	})

	queue.OnCorruption(func(err error) {
		hub.BroadcastQueueCorrupted("sync_queue", err.Error())
	})
	draftStore.OnCorruption(func(err error) {
		hub.BroadcastQueueCorrupted("inspection_drafts", err.Error())
	})
}

// remoteToken resolves the record API token: config value first, then
// the encrypted credential store.
func remoteToken(cfg *config.Config, creds *crypto.CredentialStore) string {
	if cfg.Remote.Token != "" {
		return cfg.Remote.Token
	}
	token, err := creds.Get("remote-token")
	if err != nil {
		logging.Warn("remote token not found in credential store, requests will be unauthenticated")
		return ""
	}
	return token
}

// blobSecret resolves the blob store secret key: config value first,
// then the encrypted credential store.
func blobSecret(cfg *config.Config, creds *crypto.CredentialStore) string {
	if cfg.Blob.SecretKey != "" {
		return cfg.Blob.SecretKey
	}
	secret, err := creds.Get("blob-secret-key")
	if err != nil {
		logging.Warn("blob secret key not found in credential store")
		return ""
	}
	return secret
}

// logWriter returns stdout or a rotating file sink per the config.
func logWriter(cfg *config.Config) io.Writer {
	if cfg.Log.File == "" {
		return os.Stdout
	}
	return &lumberjack.Logger{
		Filename:   cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
	}
}

// logLevel maps the config level string onto a logging level.
func logLevel(level string) logging.LogLevel {
	switch level {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
