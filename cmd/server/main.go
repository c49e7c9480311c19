package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"haiwei-pos/backend/internal/cache"
	"haiwei-pos/backend/internal/catalog"
	"haiwei-pos/backend/internal/config"
	"haiwei-pos/backend/internal/export"
	"haiwei-pos/backend/internal/httpapi"
	"haiwei-pos/backend/internal/insight"
	"haiwei-pos/backend/internal/service"
	"haiwei-pos/backend/internal/session"
	"haiwei-pos/backend/internal/store"
	"haiwei-pos/backend/internal/store/memory"
	pgstore "haiwei-pos/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		log.Fatalf("unknown TZ_NAME %q: %v", cfg.TimeZone, err)
	}

	menu, err := loadCatalog(cfg)
	if err != nil {
		log.Fatalf("catalog: %v", err)
	}

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatalf("postgres schema: %v", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		repo = memory.New()
		log.Println("repository: in-memory")
	}

	var (
		sessions   session.Store      = session.NewMemoryStore()
		cacheStore cache.InsightCache = cache.NoopInsightCache{}
	)
	if cfg.RedisAddr != "" {
		client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("redis unavailable (%v), session kept in memory", err)
			_ = client.Close()
		} else {
			sessions = session.NewRedisStore(client, cfg.SessionKey)
			cacheStore = cache.NewRedisInsightCache(client)
			closers = append(closers, client.Close)
			log.Println("session: redis")
		}
	} else {
		log.Println("session: in-memory")
	}

	var summarizer insight.Summarizer
	if cfg.GeminiAPIKey != "" {
		summarizer = insight.NewGeminiSummarizer(cfg.GeminiAPIKey, cfg.GeminiModel)
	}
	engine := insight.NewEngine(summarizer, cacheStore, time.Duration(cfg.InsightTTLSeconds)*time.Second)

	var exporter export.Exporter = export.NoopExporter{}
	if cfg.Export.Enabled() {
		r2, err := export.NewR2Exporter(ctx, export.R2Options{
			Endpoint:      cfg.Export.Endpoint,
			AccessKey:     cfg.Export.AccessKey,
			SecretKey:     cfg.Export.SecretKey,
			Bucket:        cfg.Export.Bucket,
			PublicBaseURL: cfg.Export.PublicBaseURL,
		})
		if err != nil {
			log.Printf("export storage unavailable (%v), exports disabled", err)
		} else {
			exporter = r2
			log.Println("export: r2")
		}
	}

	svc, err := service.New(ctx, service.Options{
		Catalog:  menu,
		Sessions: sessions,
		Repo:     repo,
		Insight:  engine,
		Exporter: exporter,
		Location: loc,
	})
	if err != nil {
		log.Fatalf("service: %v", err)
	}
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, cfg.ManagerPIN)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("POS backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func loadCatalog(cfg config.Config) (*catalog.Catalog, error) {
	menu := catalog.Default()
	if cfg.CatalogFile != "" {
		loaded, err := catalog.Load(cfg.CatalogFile)
		if err != nil {
			return nil, err
		}
		menu = loaded
		log.Printf("catalog: %s (%d products)", cfg.CatalogFile, len(menu.Products()))
	}
	if cfg.ComboPrice > 0 {
		menu = menu.WithComboPrice(cfg.ComboPrice)
	}
	return menu, nil
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if len(cfg.ManagerPIN) < 6 {
		return fmt.Errorf("MANAGER_PIN must be set and at least 6 digits")
	}
	for _, r := range cfg.ManagerPIN {
		if r < '0' || r > '9' {
			return fmt.Errorf("MANAGER_PIN must contain digits only")
		}
	}
	if err := validatePINStrength(cfg.ManagerPIN); err != nil {
		return fmt.Errorf("MANAGER_PIN is too weak: %w", err)
	}
	return nil
}

// validatePINStrength rejects PINs that repeat one digit, run in sequence, or
// appear on the common-PIN list.
func validatePINStrength(pin string) error {
	known := map[string]bool{
		"123456": true, "654321": true, "000000": true, "111111": true,
		"121212": true, "112233": true, "123123": true, "520520": true,
		"168168": true, "888888": true,
	}
	if known[pin] {
		return fmt.Errorf("common PIN not allowed")
	}

	allSame := true
	for i := 1; i < len(pin); i++ {
		if pin[i] != pin[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("all-same-digit PIN not allowed")
	}

	ascending, descending := true, true
	for i := 1; i < len(pin); i++ {
		diff := int(pin[i]) - int(pin[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return fmt.Errorf("sequential PIN not allowed")
	}

	return nil
}
