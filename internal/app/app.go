// Package app wires every collaborator of the orchestrator together:
// config, the State Store, the Artifact Store Client, the Secret
// Registry, the Event Bus, the Cluster Driver, the scheduler's
// reconciliation loop, and the HTTP façade. Grounded on the teacher's
// internal/app package shape (one file per concern, an App struct that
// owns lifecycle), rebuilt for this domain's collaborators.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/flowmium-io/flowmium/internal/artifacts"
	"github.com/flowmium-io/flowmium/internal/clusterdriver"
	"github.com/flowmium-io/flowmium/internal/clusterdriver/k8sdriver"
	"github.com/flowmium-io/flowmium/internal/db"
	"github.com/flowmium-io/flowmium/internal/events"
	"github.com/flowmium-io/flowmium/internal/httpapi"
	"github.com/flowmium-io/flowmium/internal/observability"
	"github.com/flowmium-io/flowmium/internal/platform/config"
	"github.com/flowmium-io/flowmium/internal/platform/leaselock"
	"github.com/flowmium-io/flowmium/internal/platform/logger"
	"github.com/flowmium-io/flowmium/internal/repos"
	"github.com/flowmium-io/flowmium/internal/scheduler"
	"github.com/flowmium-io/flowmium/internal/secrets"
)

const schedulerLeaseKey = "flowmium:scheduler:lease"

// App owns every long-lived collaborator's lifecycle: New connects
// everything, Run blocks serving the HTTP façade and ticking the
// scheduler, Close releases the lease and closes connections.
type App struct {
	cfg    config.Config
	log    *logger.Logger
	server *http.Server
	sched  *scheduler.Scheduler
	lease  *leaselock.Lock
	otel   func(context.Context) error
}

// New loads configuration, connects the State Store, builds every other
// collaborator, and wires the scheduler and HTTP façade. It does not
// start serving; call Run for that.
func New(ctx context.Context) (*App, error) {
	log, err := logger.New(config.GetEnv("LOG_MODE", "development", nil))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	cfg := config.Load(log)

	shutdownOtel := observability.InitOTel(ctx, log, observability.OtelConfig{ServiceName: "flowmium"})

	pg, err := db.NewPostgresService(cfg.PostgresURL, log)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	flowRepo := repos.NewFlowRepo(pg.DB(), log)
	secretRepo := repos.NewSecretRepo(pg.DB(), log)
	secretRegistry := secrets.NewRegistry(secretRepo)
	bus := events.NewBus(log)

	artifactClient, err := artifacts.New(ctx, cfg.BucketName, cfg.StoreURL, log)
	if err != nil {
		return nil, fmt.Errorf("build artifact client: %w", err)
	}

	driver, err := buildClusterDriver(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("build cluster driver: %w", err)
	}

	var lease *leaselock.Lock
	if cfg.RedisURL != "" {
		lease, err = leaselock.New(cfg.RedisURL, schedulerLeaseKey, uuid.New().String(), 3*cfg.SchedulerTick, log)
		if err != nil {
			return nil, fmt.Errorf("build scheduler lease: %w", err)
		}
	}

	sched := scheduler.New(flowRepo, driver, bus, secretRegistry, lease, cfg.SchedulerTick, log)

	router := httpapi.NewRouter(httpapi.Dependencies{
		Flows:       flowRepo,
		Artifacts:   artifactClient,
		Secrets:     secretRegistry,
		Bus:         bus,
		Log:         log,
		ServiceName: "flowmium",
	})

	return &App{
		cfg:    cfg,
		log:    log,
		server: &http.Server{Addr: cfg.HTTPAddr, Handler: router},
		sched:  sched,
		lease:  lease,
		otel:   shutdownOtel,
	}, nil
}

// Run blocks serving the HTTP façade and the scheduler's reconciliation
// loop until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	go a.sched.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("HTTP façade listening", "addr", a.cfg.HTTPAddr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return a.Close()
	case err := <-errCh:
		_ = a.Close()
		return err
	}
}

// Close shuts the HTTP server down gracefully and flushes OTel.
func (a *App) Close() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("HTTP server shutdown error", "error", err)
	}
	if a.lease != nil {
		a.lease.Release(shutdownCtx)
		_ = a.lease.Close()
	}
	if a.otel != nil {
		_ = a.otel(shutdownCtx)
	}
	a.log.Sync()
	return nil
}

// buildClusterDriver connects to Kubernetes using in-cluster config when
// available, falling back to KUBECONFIG — the same precedence spec.md §6
// describes ("optional when the process runs inside the cluster with an
// attached identity").
func buildClusterDriver(cfg config.Config, log *logger.Logger) (clusterdriver.Driver, error) {
	restCfg, err := rest.InClusterConfig()
	if err != nil {
		kubeconfig := cfg.Kubeconfig
		if kubeconfig == "" {
			kubeconfig = os.Getenv("HOME") + "/.kube/config"
		}
		restCfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("load kube config: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("build kubernetes clientset: %w", err)
	}

	return k8sdriver.New(clientset, cfg.Namespace, cfg.InitContainerImage, cfg.TaskStoreURL, log), nil
}
