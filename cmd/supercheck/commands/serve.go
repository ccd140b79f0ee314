package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/supercheck/core/internal/alert"
	"github.com/supercheck/core/internal/artifact"
	"github.com/supercheck/core/internal/capacity"
	"github.com/supercheck/core/internal/config"
	"github.com/supercheck/core/internal/dispatcher"
	"github.com/supercheck/core/internal/executor"
	"github.com/supercheck/core/internal/heartbeat"
	"github.com/supercheck/core/internal/janitor"
	"github.com/supercheck/core/internal/logging"
	"github.com/supercheck/core/internal/notifier"
	"github.com/supercheck/core/internal/prober"
	"github.com/supercheck/core/internal/queue"
	"github.com/supercheck/core/internal/repo"
	"github.com/supercheck/core/internal/scheduler"
)

var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Start the scheduler, workers, heartbeat receiver, and janitor",
	RunE:    runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if jsonLogs, _ := cmd.Flags().GetBool("json-logs"); jsonLogs {
		cfg.Log.JSON = true
	}
	if err := logging.Initialize(cfg.Log.JSON); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logging.Named("cmd.serve")

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	r := repo.New(db)
	q := queue.New(queue.NewStore(db))

	cap := capacity.New(q, cfg.Capacity.RunningCapacity, queue.JobExecutionKind, queue.MonitorExecutionKind)

	artifactStore := artifact.NewFilesystemStore(cfg.Artifact.BaseDir, cfg.Artifact.BaseURL)
	notifierRegistry := notifier.NewDefault()
	alertEngine := alert.NewEngine(r, notifierRegistry, cfg.Alert.DashboardURL,
		cfg.Alert.SSLCooldownHours, cfg.Alert.NotifierTimeoutSeconds, cfg.Alert.SSLCheckFrequencyHours)

	jobExec := executor.NewProcessExecutor()
	jobDispatcher := dispatcher.NewJobDispatcher(r, cap, jobExec, artifactStore, alertEngine,
		cfg.Executor.WorkingDirBase, cfg.Executor.Command, nil, time.Duration(cfg.Executor.TimeoutSeconds)*time.Second)

	tlsProber := prober.NewTlsProber(cfg.Alert.SSLWarnDays)
	probers := map[repo.MonitorType]prober.Prober{
		repo.MonitorHTTPRequest: prober.NewHttpProber(time.Duration(cfg.Prober.HTTPTimeoutSeconds)*time.Second, tlsProber),
		repo.MonitorWebsite:     prober.NewHttpProber(time.Duration(cfg.Prober.HTTPTimeoutSeconds)*time.Second, tlsProber),
		repo.MonitorPingHost:    prober.NewPingProber(),
		repo.MonitorPortCheck:   prober.NewPortProber(),
	}
	heartbeatChecker := prober.NewHeartbeatChecker()
	monitorDispatcher := dispatcher.NewMonitorDispatcher(r, alertEngine, probers, heartbeatChecker,
		cfg.Alert.SSLWarnDays, cfg.Alert.SSLCheckFrequencyHours)

	registry := queue.NewRegistry()
	registry.Register(jobDispatcher)
	registry.Register(monitorDispatcher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pollInterval := time.Duration(cfg.Scheduler.PollIntervalSeconds) * time.Second
	jobScheduler := scheduler.NewJobScheduler(r, q, pollInterval)
	monitorScheduler := scheduler.NewMonitorScheduler(r, q, pollInterval)

	jobPool := queue.NewWorkerPool(ctx, q, registry, queue.PoolConfig{
		Kind: queue.JobExecutionKind, Workers: cfg.Scheduler.JobWorkers,
		GracefulStartPhase: time.Duration(cfg.Scheduler.StartupGracePeriodSecs) * time.Second,
	})
	monitorPool := queue.NewWorkerPool(ctx, q, registry, queue.PoolConfig{
		Kind: queue.MonitorExecutionKind, Workers: cfg.Scheduler.MonitorWorkers,
		GracefulStartPhase: time.Duration(cfg.Scheduler.StartupGracePeriodSecs) * time.Second,
	})

	janitorCfg := janitor.Config{
		Interval:       time.Duration(cfg.Janitor.IntervalHours) * time.Hour,
		JobDataTTL:     time.Duration(cfg.Janitor.OrphanJobTTLDays) * 24 * time.Hour,
		EventStreamTTL: time.Duration(cfg.Janitor.EventStreamTTLHours) * time.Hour,
		MetricsTTL:     time.Duration(cfg.Janitor.MetricsTTLHours) * time.Hour,
		BatchSize:      cfg.Janitor.ScanBatchSize,
	}
	sweeper := janitor.New(r, q, janitorCfg)

	heartbeatReceiver := heartbeat.NewReceiver(r, alertEngine)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /heartbeat/{monitorId}", heartbeatReceiver.ServeHTTP)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	httpServer := &http.Server{Addr: cfg.Heartbeat.ListenAddr, Handler: mux}

	jobScheduler.Start(ctx)
	monitorScheduler.Start(ctx)
	jobPool.Start()
	monitorPool.Start()
	sweeper.Start(ctx)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- httpServer.ListenAndServe()
	}()

	pterm.Success.Printf("supercheck serving: heartbeat ingress on %s, %d job worker(s), %d monitor worker(s)\n",
		cfg.Heartbeat.ListenAddr, cfg.Scheduler.JobWorkers, cfg.Scheduler.MonitorWorkers)
	log.Infow("supercheck started", "heartbeat_addr", cfg.Heartbeat.ListenAddr,
		"job_workers", cfg.Scheduler.JobWorkers, "monitor_workers", cfg.Scheduler.MonitorWorkers)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("heartbeat server failed: %w", err)
		}
	case <-sigCh:
		pterm.Info.Println("shutting down gracefully (press Ctrl+C again to force)...")
		go func() {
			<-sigCh
			pterm.Warning.Println("force shutdown - exiting immediately")
			os.Exit(1)
		}()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)

		jobScheduler.Stop()
		monitorScheduler.Stop()
		jobPool.Stop()
		monitorPool.Stop()
		sweeper.Stop()
		cancel()

		pterm.Success.Println("supercheck stopped cleanly")
	}

	return nil
}
