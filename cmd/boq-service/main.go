package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/nurpe/snowops-boq/internal/auth"
	"github.com/nurpe/snowops-boq/internal/config"
	"github.com/nurpe/snowops-boq/internal/db"
	"github.com/nurpe/snowops-boq/internal/excel"
	httphandler "github.com/nurpe/snowops-boq/internal/http"
	"github.com/nurpe/snowops-boq/internal/http/middleware"
	"github.com/nurpe/snowops-boq/internal/logger"
	"github.com/nurpe/snowops-boq/internal/pdf"
	"github.com/nurpe/snowops-boq/internal/repository"
	"github.com/nurpe/snowops-boq/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment, cfg.LogLevel)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	contractRepo := repository.NewContractRepository(database)
	itemRepo := repository.NewItemRepository(database)
	addendumRepo := repository.NewAddendumRepository(database)

	cache := newVigentCache(cfg, log)
	locker := service.NewContractLocker()
	vigentService := service.NewVigentService(contractRepo, itemRepo, addendumRepo, cache, log)
	treeService := service.NewTreeService(contractRepo, itemRepo, addendumRepo, locker, vigentService, log)
	addendumService := service.NewAddendumService(contractRepo, itemRepo, addendumRepo, locker, vigentService, log)

	var font []byte
	if cfg.BOQ.PDFFontPath != "" {
		font, err = os.ReadFile(cfg.BOQ.PDFFontPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.BOQ.PDFFontPath).Msg("failed to read pdf font")
		}
	}
	pdfGenerator := pdf.NewGenerator(font, cfg.BOQ.AmountScale)
	excelGenerator := excel.NewGenerator(cfg.BOQ.AmountScale)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(treeService, addendumService, vigentService, excelGenerator, pdfGenerator, log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment, cfg.CORS.AllowedOrigins, log)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting boq service")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}

// newVigentCache uses redis when REDIS_ADDR is set and reachable, the
// in-process cache otherwise.
func newVigentCache(cfg *config.Config, log zerolog.Logger) service.VigentCache {
	if cfg.Redis.Addr == "" {
		return service.NewMemoryVigentCache(cfg.BOQ.VigentCacheTTL)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, using in-process vigent cache")
		_ = client.Close()
		return service.NewMemoryVigentCache(cfg.BOQ.VigentCacheTTL)
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("vigent cache backed by redis")
	return service.NewRedisVigentCache(client, cfg.BOQ.VigentCacheTTL, log)
}
