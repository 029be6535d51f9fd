package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/jinkaiteo/edms/internal/events"
	"github.com/jinkaiteo/edms/internal/jobs"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

func init() {
	rootCmd.AddCommand(serveCmd())
}

func serveCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "serve",
		Short: "run the scheduled sweeps, notifications and the metrics endpoint",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			client, cfg, ok := openClient(ctx)
			if !ok {
				return
			}
			defer closeClient(client)

			tasks := []jobs.CronJob{
				jobs.NewEffectiveSweepTask(cfg.Sweep.EffectiveSchedule, cfg.Sweep.Timeout, client.Sweeper),
				jobs.NewObsolescenceSweepTask(cfg.Sweep.ObsolescenceSchedule, cfg.Sweep.Timeout, client.Sweeper),
			}
			if client.Capabilities != nil {
				tasks = append(tasks, jobs.NewCapabilityFlushTask(cfg.Redis.FlushSchedule, client.Capabilities))
			}

			executor := jobs.NewTaskExecutor(tasks...)
			if err := executor.Run(); err != nil {
				logrus.Error(err)
				return
			}
			defer executor.Stop()

			// make sure to wait for the background loops to stop before exiting
			var wg sync.WaitGroup

			reconciler := jobs.NewFamilyReconciler(client.Store, cfg.Sweep.ReconcileInterval)
			wg.Add(1)
			go func() {
				defer wg.Done()
				reconciler.Run()
			}()

			if client.Notifications != nil {
				messages, err := client.Notifications.Subscribe(ctx, cfg.Notifications.Topic)
				if err != nil {
					logrus.Errorf("error subscribing to notifications: %v", err)
					return
				}
				wg.Add(1)
				go func() {
					defer wg.Done()
					events.Consume(messages, events.LogNotification)
				}()
			}

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			metricsServer := &http.Server{
				Addr:              cfg.Metrics.Addr,
				Handler:           mux,
				ReadHeaderTimeout: 5 * time.Second,
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				logrus.Info("serving metrics on: ", cfg.Metrics.Addr)
				if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logrus.Errorf("error starting metrics server: %v", err)
				}
				logrus.Infof("metrics server stopped")
			}()

			logrus.Infof("Press Ctrl+C to stop the server")

			// listen for interrupt signal to gracefully shut down
			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, unix.SIGTERM, unix.SIGINT)
			<-sigs
			// clean Ctrl+C output
			fmt.Println()

			reconciler.Stop()
			cancel()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logrus.Errorf("error stopping metrics server: %v", err)
			}

			wg.Wait()
		},
	}

	return command
}
