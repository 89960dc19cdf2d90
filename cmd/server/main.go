package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"

	"github.com/YudyTkm/itlingo-itoi-sub001/internal/config"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/db"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/git"
	healthhandler "github.com/YudyTkm/itlingo-itoi-sub001/internal/health/handler"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/mirror"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/policy/engine"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/portal"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/scaffold"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/security"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/server"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/server/interceptors"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/session/store"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/telemetry"
	telemetryotel "github.com/YudyTkm/itlingo-itoi-sub001/internal/telemetry/otel"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/telemetry/producer"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/watcher"
	workspacehandler "github.com/YudyTkm/itlingo-itoi-sub001/internal/workspace/handler"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/workspace/layout"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/workspace/provision"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/workspace/registry"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/workspace/repository"
)

const serviceName = "itoi-workspaces"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	emitters := []telemetry.EventEmitter{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	var kafkaProducer producer.Producer
	if p := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.MirrorKafkaTopic); p != nil {
		kafkaProducer = p
		emitters = append(emitters, p)
		log.Printf("telemetry: publishing workspace events to kafka topic %s", cfg.MirrorKafkaTopic)
	}
	emitter := telemetry.Fanout(emitters...)

	var (
		repo   repository.Repository
		pinger healthhandler.Pinger
	)
	if cfg.DatabaseURL != "" {
		pool, err := db.Open(ctx, cfg.DatabaseURL, cfg.DeployMode())
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer pool.Close()
		repo = repository.NewPostgresRepository(pool)
		pinger = pool
	} else {
		log.Println("db: DATABASE_URL is not set; workspace files are kept in memory")
		repo = repository.NewMemoryRepository()
	}

	policySource := ""
	if cfg.PolicyFile != "" {
		b, err := os.ReadFile(cfg.PolicyFile)
		if err != nil {
			log.Fatalf("policy: %v", err)
		}
		policySource = string(b)
	}
	policy, err := engine.NewOPAEvaluator(ctx, policySource)
	if err != nil {
		log.Fatalf("policy: %v", err)
	}

	capabilities, err := security.NewCapabilityCipher([]byte(cfg.CapabilityKey))
	if err != nil {
		log.Fatalf("security: %v", err)
	}
	sessionStore := store.NewMemoryStore(cfg.SessionTTL())
	sessions := interceptors.NewSessions(sessionStore, security.NewSessionTokens([]byte(cfg.SessionSecret), cfg.SessionTTL()), cfg.DeployMode())

	fsys := afero.NewOsFs()
	wsLayout := layout.New(cfg.WorkspaceRoot)
	reg := registry.New()
	cloner := git.NewCloner(cfg.CloneHelper)
	provisioner := provision.New(wsLayout, reg, sessionStore, repo, cloner, fsys, emitter)

	w, err := watcher.New(wsLayout.TmpDir(), cfg.WatchBatchWindow(), watcher.WithSkipDir(func(name string) bool {
		return name == layout.VCSDir
	}))
	if err != nil {
		log.Fatalf("watcher: %v", err)
	}
	m := mirror.New(wsLayout, reg, repo, fsys, emitter)
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		if err := w.Run(ctx); err != nil {
			log.Printf("watcher: %v", err)
		}
	}()
	mirrorDone := make(chan struct{})
	go func() {
		defer close(mirrorDone)
		m.Run(ctx, w.Batches())
	}()

	gin.SetMode(gin.ReleaseMode)
	ws := workspacehandler.NewHandler(workspacehandler.Deps{
		Sessions:    sessions,
		Store:       sessionStore,
		Decryptor:   capabilities,
		Provisioner: provisioner,
		Registry:    reg,
		Policy:      policy,
		Portal:      portal.NewClient(cfg.PortalURL),
		Scaffold:    scaffold.New(fsys, cfg.TemplateDir),
		Cloner:      cloner,
		Remotes:     repo,
		Fs:          fsys,
		PortalURL:   cfg.PortalURL,
		GitHost:     cfg.GitHost,
		Emitter:     emitter,
	})
	router := server.NewRouter(server.Deps{
		Sessions:  sessions,
		Workspace: ws,
		Health:    healthhandler.NewHandler(pinger, policy),
	})
	srv := server.NewHTTPServer(cfg.HTTPAddr, router)

	go func() {
		log.Printf("HTTP server listening on %s (workspaces under %s)", cfg.HTTPAddr, wsLayout.TmpDir())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	<-watchDone
	<-mirrorDone
	if err := provisioner.Tasks().WaitAll(shutdownCtx); err != nil {
		log.Printf("provision: background population still running: %v", err)
	}

	// Let in-flight async emits finish before the exporters go away.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Printf("telemetry: kafka close: %v", err)
		}
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
