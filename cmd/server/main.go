package main

import (
	"context"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/coldbrewlabs/pairhub/internal/api/middleware"
	"github.com/coldbrewlabs/pairhub/internal/config"
	"github.com/coldbrewlabs/pairhub/internal/dispatch"
	"github.com/coldbrewlabs/pairhub/internal/identity"
	"github.com/coldbrewlabs/pairhub/internal/logger"
	"github.com/coldbrewlabs/pairhub/internal/membership"
	"github.com/coldbrewlabs/pairhub/internal/registry"
	"github.com/coldbrewlabs/pairhub/internal/wsconn"
)

func main() {
	cfg, err := config.Load(config.Overrides{})
	if err != nil {
		logger.Errorf("failed to load config: %v", err)
		os.Exit(1)
	}

	if cfg.Debug {
		logger.SetLevel(logger.LevelDebug)
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Infof("opening membership store: %s", cfg.DatabasePath)
	resolver, err := membership.OpenSQLiteResolver(cfg.DatabasePath)
	if err != nil {
		logger.Errorf("failed to open membership store: %v", err)
		os.Exit(1)
	}
	defer resolver.Close()

	verifier := identity.NewJWTVerifier(cfg.MasterSecret)

	hub := registry.NewHub(cfg.RequestTTL, nil)
	deps := dispatch.NewDeps(hub, verifier, resolver)

	startedAt := deps.Now()

	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	defer cancelSweep()
	go registry.RunRequestSweep(sweepCtx, hub, cfg.RequestSweepInterval)
	go wsconn.RunHeartbeatSupervisor(sweepCtx, deps, hub, cfg.HeartbeatInterval)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"*"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))
	router.Use(middleware.LoggingMiddleware())

	router.GET("/healthz", middleware.HealthHandler(startedAt, func() middleware.HealthStats {
		s := hub.Stats()
		return middleware.HealthStats{Peers: s.Peers, Sessions: s.Sessions, Sockets: s.Sockets}
	}))

	wsServer := wsconn.NewServer(hub, deps, cfg.IPHashSalt, cfg.AuthTimeout, cfg.AllowedOrigins)
	router.GET("/ws", wsServer.HandleUpgrade)

	logger.Infof("pairhub server starting on %s", cfg.Addr)
	if err := router.Run(cfg.Addr); err != nil {
		logger.Errorf("server exited: %v", err)
		os.Exit(1)
	}
}
