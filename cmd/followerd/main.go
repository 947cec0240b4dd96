// Command followerd runs a single follower replication core behind an
// HTTP ingress, grounded on cmd/main.go's flag parsing and signal
// handling, adapted to YAML configuration and the follower's Start/Stop
// lifecycle instead of the teacher's election-driving Server.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httptransport "github.com/joyqueue/journalkeeper/transport/http"

	"github.com/joyqueue/journalkeeper/applier"
	"github.com/joyqueue/journalkeeper/follower"
	"github.com/joyqueue/journalkeeper/journal"
	"github.com/joyqueue/journalkeeper/membership"
	"github.com/joyqueue/journalkeeper/metrics"
	"github.com/joyqueue/journalkeeper/serverconfig"
	"github.com/joyqueue/journalkeeper/threads"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to node YAML config")
		term       = flag.Int("term", 0, "current term reported by the role manager")
	)
	flag.Parse()

	if *configPath == "" {
		log.Fatal("config path must be provided")
	}

	cfg, err := serverconfig.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := os.MkdirAll(cfg.Node.DataDir, 0755); err != nil {
		log.Fatalf("failed to create data directory: %v", err)
	}

	j := journal.NewMemJournal()
	snapshots := journal.NewMemSnapshotMap()
	configState := membership.NewConfigState(cfg.PeerURIs())
	reconciler := membership.NewReconciler()
	registry := threads.NewInMemRegistry()
	metricsSink := metrics.NewInmem(cfg.Node.URI)

	f := follower.New(j, configState, cfg.Node.URI, *term, reconciler, registry, snapshots,
		cfg.Node.CachedRequests, metricsSink, log.Default())

	sm := applier.NewKVStateMachine(j)
	registry.CreateThread(threads.Descriptor{
		Name: cfg.Node.URI + "-state-machine",
		Work: sm.Run,
	})
	if err := registry.StartThread(cfg.Node.URI + "-state-machine"); err != nil {
		log.Fatalf("failed to start state machine thread: %v", err)
	}

	f.Start()
	log.Printf("follower %s started, term=%d", cfg.Node.URI, *term)

	handler := httptransport.NewHandler(f)
	mux := http.NewServeMux()
	handler.RegisterHandlers(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		queueSize := f.ReplicationQueueSize()
		leaderMaxIndex := f.LeaderMaxIndex()
		log.Printf("health check: queueSize=%d leaderMaxIndex=%d", queueSize, leaderMaxIndex)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			State          string `json:"state"`
			QueueSize      int    `json:"queueSize"`
			LeaderMaxIndex int64  `json:"leaderMaxIndex"`
		}{
			State:          f.LifecycleState().String(),
			QueueSize:      queueSize,
			LeaderMaxIndex: leaderMaxIndex,
		})
	})

	httpServer := &http.Server{Addr: cfg.Node.Address, Handler: mux}

	go func() {
		log.Printf("follower %s listening on %s", cfg.Node.URI, cfg.Node.Address)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("shutting down...")
	f.Stop()
	_ = registry.StopThread(cfg.Node.URI + "-state-machine")
	_ = httpServer.Close()
}
