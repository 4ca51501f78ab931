package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/skillbridge/pulse/internal/auth"
	"github.com/skillbridge/pulse/internal/config"
	"github.com/skillbridge/pulse/internal/database"
	"github.com/skillbridge/pulse/internal/devserver"
	"github.com/skillbridge/pulse/internal/handlers"
	"github.com/skillbridge/pulse/internal/notify"
	"github.com/skillbridge/pulse/internal/prefetch"
	"github.com/skillbridge/pulse/internal/realtime"
	"github.com/skillbridge/pulse/internal/store"
	"github.com/skillbridge/pulse/internal/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "pulse",
	Short: "SkillBridge client infrastructure: adaptive prefetch + realtime push",
	PersistentPreRun: func(*cobra.Command, []string) {
		// .env is optional; local dev convenience only.
		godotenv.Load()
	},
	SilenceUsage: true,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Connect the realtime client and prefetch engine against the configured endpoint",
	RunE:  runWatch,
}

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run the local push simulator",
	RunE:  runDevServer,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to pulse.yaml")
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(devserverCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

func buildLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := buildLogger(cfg.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	// Pattern storage: Postgres when a DSN is configured, memory otherwise.
	var kv store.KV = store.NewMemory()
	if os.Getenv("PULSE_DATABASE_DSN") != "" {
		db, err := database.Connect()
		if err != nil {
			return err
		}
		kv = store.NewGorm(db)
		logger.Info("navigation patterns persisted to database")
	}

	activity := telemetry.NewActivityMonitor(cfg.Prefetch.IdleWindow())
	defer activity.Stop()

	warmer := prefetch.NewHTTPWarmer(cfg.Server.BaseURL)
	engine := prefetch.NewEngine(prefetch.Options{
		Router:  warmer,
		Images:  warmer,
		Battery: telemetry.SysfsBattery{},
		Idle:    activity,
		Logger:  logger,
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	predictor := prefetch.NewPredictor(ctx, engine, kv, prefetch.PredictorOptions{Logger: logger})

	notifications := notify.NewMemoryStore()
	router := realtime.NewRouter(notifications, logger)

	client := realtime.NewClient(realtime.Options{
		URL:                  cfg.Server.SocketURL,
		Session:              auth.FromEnv(),
		HeartbeatInterval:    cfg.Realtime.Heartbeat(),
		ReconnectBase:        cfg.Realtime.ReconnectBase(),
		MaxReconnectAttempts: cfg.Realtime.MaxReconnectAttempts,
		Handler: func(msg realtime.Message) {
			router.Handle(msg)
			logger.Info("notification received",
				zap.String("type", msg.Type),
				zap.Int("unread", notifications.Unread()))
		},
		OnConnect: func() {
			logger.Info("connected, warming the default routes")
			engine.Evaluate(ctx, prefetch.Request{
				Routes:   []string{"/dashboard", "/jobs", "/messages"},
				Priority: prefetch.PriorityHigh,
				Conditions: prefetch.Conditions{
					DataUsage: prefetch.DataUsage(cfg.Prefetch.DataUsage),
				},
			})
			predictor.PrefetchLikely(ctx, "/dashboard")
		},
		OnDisconnect: func() { logger.Warn("disconnected") },
		OnError:      func(err error) { logger.Error("connection error", zap.Error(err)) },
		Logger:       logger,
	})
	defer client.Close()

	client.Connect()
	logger.Info("watching", zap.String("socket", cfg.Server.SocketURL))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	fmt.Println("shutting down")
	return nil
}

func runDevServer(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := buildLogger(true)
	if err != nil {
		return err
	}
	defer logger.Sync()

	// The delivery log is optional; the simulator runs fine without a DB.
	hub := devserver.NewHub(logger, nil)
	if os.Getenv("PULSE_DATABASE_DSN") != "" {
		db, err := database.Connect()
		if err != nil {
			return err
		}
		hub = devserver.NewHub(logger, db)
		logger.Info("delivery log enabled")
	}

	stream := handlers.NewStreamHandler(hub)

	r := gin.Default()
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true // dev tool only
	corsCfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(corsCfg))

	r.GET("/ws", stream.Serve)
	api := r.Group("/api/v1")
	{
		api.GET("/health", handlers.HealthCheck)
		api.POST("/notify", stream.Push)
	}
	// Warm-up targets for the prefetch engine.
	for _, route := range []string{"/dashboard", "/jobs", "/messages", "/profile", "/applications"} {
		r.GET(route, handlers.RouteStub)
	}

	if cfg.DevServer.PushIntervalSeconds > 0 {
		stop := make(chan struct{})
		defer close(stop)
		hub.StartSampleFeed(time.Duration(cfg.DevServer.PushIntervalSeconds)*time.Second, stop)
	}

	log.Printf("🚀 Dev server listening on %s", cfg.DevServer.Listen)
	return r.Run(cfg.DevServer.Listen)
}
