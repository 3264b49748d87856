// Package main provides the FFI bridge for mobile platforms.
// Build as shared library: libdonedexsync.so (Android) / DonedexSync.xcframework (iOS)
package main

/*
#cgo CFLAGS: -Wall -Wextra
#include <stdlib.h>
*/
import "C"
import (
	"context"
	"fmt"
	"os"
	"sync"
	"unsafe"

	"github.com/theonlywayisdigital/donedex-sub004/internal/config"
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

// mobileCore bundles the wired sync components for the FFI surface.
// The host platform owns connectivity and pushes it via SetNetworkState.
type mobileCore struct {
	store   kvstore.Store
	queue   *syncqueue.Queue
	drafts  *drafts.Store
	monitor *netmon.Monitor
	engine  *synceng.Engine
	sched   *scheduler.Scheduler
}

var (
	once    sync.Once
	core    *mobileCore
	lastMu  sync.RWMutex
	lastErr string
)

//export Init
// Init initializes the sync core from the YAML config at configPath.
// Errors are reported through GetLastError; a failed Init leaves every
// other call returning "Core not initialized".
func Init(configPath *C.char) {
	once.Do(func() {
		cfg, err := config.Load(C.GoString(configPath))
		if err != nil {
			setLastError(fmt.Sprintf("Failed to load config: %v", err))
			return
		}

		logging.Init(os.Stdout, logLevel(cfg.Log.Level))

		store, err := kvstore.Open(cfg.DataDir)
		if err != nil {
			setLastError(fmt.Sprintf("Failed to open store: %v", err))
			return
		}

		queue := syncqueue.New(store)
		draftStore := drafts.New(store)

		// The host platform pushes connectivity; no probe loop runs.
		monitor := netmon.New(nil, 0)

		if cfg.Remote.BaseURL == "" {
			logging.Warn("remote.base_url not configured, drains will fail until it is set")
		}
		records := remote.NewClient(remote.ClientConfig{
			BaseURL: cfg.Remote.BaseURL,
			Token:   cfg.Remote.Token,
			Timeout: cfg.RemoteTimeout(),
		})

		var blobs remote.BlobStore
		if cfg.Blob.Endpoint != "" {
			blobs, err = remote.NewMinIOStore(cfg.Blob.Endpoint, cfg.Blob.Bucket,
				cfg.Blob.AccessKey, cfg.Blob.SecretKey, cfg.Blob.UseSSL)
			if err != nil {
				setLastError(fmt.Sprintf("Failed to create blob store: %v", err))
				return
			}
		}

		engine := synceng.New(synceng.Deps{
			Queue:       queue,
			Drafts:      draftStore,
			Monitor:     monitor,
			Records:     records,
			Blobs:       blobs,
			Compressor:  media.NewCompressor(cfg.Media.MaxDimension, cfg.Media.JPEGQuality),
			Photos:      media.NewLocalSource(nil),
			Store:       store,
			ItemTimeout: cfg.ItemTimeout(),
		})

		// Reconnect-triggered drains only; the platform decides when
		// periodic work is allowed.
		sched := scheduler.NewScheduler(engine, monitor, 0)
		sched.Start(context.Background())

		core = &mobileCore{
			store:   store,
			queue:   queue,
			drafts:  draftStore,
			monitor: monitor,
			engine:  engine,
			sched:   sched,
		}
	})
}

//export Shutdown
// Shutdown stops background work and closes the store.
func Shutdown() {
	if core == nil {
		return
	}
	core.sched.Stop()
	core.monitor.Stop()
	core.store.Close()
}

//export GetLastError
// GetLastError returns the last error message.
// Returns a C string that must be freed by the caller.
func GetLastError() *C.char {
	lastMu.RLock()
	defer lastMu.RUnlock()

	return C.CString(lastErr)
}

func setLastError(err string) {
	lastMu.Lock()
	defer lastMu.Unlock()
	lastErr = err
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

// =====================================================
// Memory Management Helpers
// =====================================================

//export FreeString
// FreeString frees a string allocated by Go.
func FreeString(ptr *C.char) {
	if ptr != nil {
		C.free(unsafe.Pointer(ptr))
	}
}

func main() {
	// Main entry point for shared library
	// Not used when loaded as library
}
