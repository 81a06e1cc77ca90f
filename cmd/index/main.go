// Command index watches a directory for documents and publishes them to
// the indexing queue over NATS. The worker picks them up from there.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/docent-ai/docent/engine/domain"
	"github.com/docent-ai/docent/engine/index"
	"github.com/docent-ai/docent/pkg/metrics"
	"github.com/docent-ai/docent/pkg/natsutil"
)

var met = metrics.New()

var (
	mFilesPublished = met.Counter("docent_watcher_files_published_total", "Files published to the index queue")
	mFilesSkipped   = met.Counter("docent_watcher_files_skipped_total", "Files skipped by dedup or format")
	mScanErrors     = met.Counter("docent_watcher_scan_errors_total", "Directory scan failures")
	mLastScan       = met.Gauge("docent_watcher_last_scan_timestamp", "Epoch of last directory scan")
	mBytesPublished = met.Counter("docent_watcher_bytes_published_total", "Total bytes of documents published")
)

func main() {
	var (
		dataDir   = flag.String("dir", "./documents", "directory to watch for documents")
		natsURL   = flag.String("nats", nats.DefaultURL, "NATS server URL")
		interval  = flag.Duration("interval", 30*time.Second, "scan interval")
		stateFile = flag.String("state", "", "processed files state (default <dir>/.docent-state.json)")
		port      = flag.Int("metrics-port", 9091, "metrics listen port")
	)
	flag.Parse()

	if *stateFile == "" {
		*stateFile = filepath.Join(*dataDir, ".docent-state.json")
	}

	met.ServeAsync(*port)

	log := slog.Default()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	nc, err := nats.Connect(*natsURL)
	if err != nil {
		log.Error("nats connect failed", "error", err)
		os.Exit(1)
	}
	defer nc.Close()
	log.Info("connected to NATS", "url", *natsURL)

	processed := loadState(*stateFile)
	os.MkdirAll(*dataDir, 0o755)

	log.Info("watching for documents", "dir", *dataDir, "interval", *interval)

	scan := func() {
		mLastScan.Set(time.Now().Unix())
		entries, err := os.ReadDir(*dataDir)
		if err != nil {
			mScanErrors.Inc()
			log.Error("readdir failed", "error", err)
			return
		}

		for _, e := range entries {
			if e.IsDir() || e.Name()[0] == '.' {
				continue
			}
			if _, ok := domain.FormatFromFilename(e.Name()); !ok {
				mFilesSkipped.Inc()
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			key := fmt.Sprintf("%s:%d:%d", e.Name(), info.Size(), info.ModTime().Unix())
			if processed[key] {
				mFilesSkipped.Inc()
				continue
			}

			data, err := os.ReadFile(filepath.Join(*dataDir, e.Name()))
			if err != nil {
				mScanErrors.Inc()
				log.Error("read failed", "file", e.Name(), "error", err)
				continue
			}

			req := index.Request{Name: e.Name(), Data: data}
			if err := natsutil.Publish(ctx, nc, index.Subject, req); err != nil {
				log.Error("publish failed", "file", e.Name(), "error", err)
				continue
			}

			mFilesPublished.Inc()
			mBytesPublished.Add(info.Size())
			log.Info("published", "file", e.Name(), "bytes", info.Size())

			processed[key] = true
			saveState(*stateFile, processed)
		}
	}

	scan()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		case <-ticker.C:
			scan()
		}
	}
}

func loadState(path string) map[string]bool {
	state := make(map[string]bool)
	data, err := os.ReadFile(path)
	if err != nil {
		return state
	}
	json.Unmarshal(data, &state)
	return state
}

func saveState(path string, state map[string]bool) {
	data, err := json.Marshal(state)
	if err != nil {
		return
	}
	os.WriteFile(path, data, 0o644)
}
