package main

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartystreets/goconvey/convey"

	"github.com/Sczr0/Phi-Backend/internal/adapters/http/api"
	service "github.com/Sczr0/Phi-Backend/internal/app"
	"github.com/Sczr0/Phi-Backend/internal/config"
	"github.com/Sczr0/Phi-Backend/pkg/metrics"
)

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			_ = os.Setenv("PHI_ADDR", ":8080")
			_ = os.Setenv("PHI_QUEUE_SIZE", "1000")
			_ = os.Setenv("PHI_WORKER_COUNT", "4")
			defer func() {
				_ = os.Unsetenv("PHI_ADDR")
				_ = os.Unsetenv("PHI_QUEUE_SIZE")
				_ = os.Unsetenv("PHI_WORKER_COUNT")
			}()

			convey.Convey("Then configuration should be loadable", func() {
				ctx := context.Background()
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When testing service creation", func() {
			convey.Convey("Then service should be creatable with default options", func() {
				svc := service.New()
				convey.So(svc, convey.ShouldNotBeNil)
			})

			convey.Convey("And service should be creatable with custom options", func() {
				svc := service.New(
					service.WithWorkerCount(8),
					service.WithQueueSize(2000),
					service.WithPendingSize(1000),
					service.WithRankingSize(20),
					service.WithPushAccCooldown(time.Hour),
				)
				convey.So(svc, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When testing HTTP server creation", func() {
			svc := service.New()
			convey.So(svc, convey.ShouldNotBeNil)

			convey.Convey("Then HTTP server should be creatable", func() {
				server := api.NewServer(svc, svc, 100)
				convey.So(server, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When testing metrics initialization", func() {
			convey.Convey("Then metrics manager should be creatable", func() {
				registry := prometheus.NewRegistry()
				manager := metrics.NewManager(metrics.WithPrometheusRegistry(registry))
				convey.So(manager, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.Convey("When testing the system metrics updater", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			convey.So(func() {
				startSystemMetricsUpdater(ctx)
			}, convey.ShouldNotPanic)
		})

		convey.Convey("When testing the service metrics updater", func() {
			svc := service.New()
			convey.So(svc, convey.ShouldNotBeNil)

			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			convey.So(func() {
				startServiceMetricsUpdater(ctx, svc)
			}, convey.ShouldNotPanic)
		})

		convey.Convey("When testing the system metrics update", func() {
			convey.So(func() {
				updateSystemMetrics()
			}, convey.ShouldNotPanic)
		})
	})
}

func TestMainApplicationSetup(t *testing.T) {
	convey.Convey("Given main application integration", t, func() {
		convey.Convey("When wiring all components together", func() {
			_ = os.Setenv("PHI_ADDR", ":8080")
			_ = os.Setenv("PHI_QUEUE_SIZE", "1000")
			_ = os.Setenv("PHI_WORKER_COUNT", "2")
			defer func() {
				_ = os.Unsetenv("PHI_ADDR")
				_ = os.Unsetenv("PHI_QUEUE_SIZE")
				_ = os.Unsetenv("PHI_WORKER_COUNT")
			}()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			cfg, err := config.Load(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg, convey.ShouldNotBeNil)

			// Create but do not start; the catalog files are not present here.
			svc := service.New(
				service.WithWorkerCount(cfg.WorkerCount),
				service.WithQueueSize(cfg.QueueSize),
				service.WithPendingSize(cfg.PendingSize),
			)
			convey.So(svc, convey.ShouldNotBeNil)

			server := api.NewServer(svc, svc, cfg.MaxLeaderboardLimit)
			convey.So(server, convey.ShouldNotBeNil)

			mux := http.NewServeMux()
			server.Register(ctx, mux)

			svc.Stop()
		})
	})
}

func TestMainApplicationErrorHandling(t *testing.T) {
	convey.Convey("Given main application error handling", t, func() {
		convey.Convey("When testing invalid configuration", func() {
			_ = os.Setenv("PHI_ADDR", "")
			defer func() { _ = os.Unsetenv("PHI_ADDR") }()

			convey.Convey("Then configuration loading should fail", func() {
				ctx := context.Background()
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When testing service creation with out-of-range options", func() {
			convey.Convey("Then service should fall back to defaults", func() {
				svc := service.New(
					service.WithWorkerCount(0),
					service.WithQueueSize(0),
					service.WithPendingSize(0),
				)
				convey.So(svc, convey.ShouldNotBeNil)
			})
		})
	})
}
