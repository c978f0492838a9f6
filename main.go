package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/branch/attachment"
	"github.com/cppla/branch/config"
	"github.com/cppla/branch/pod"
	"github.com/cppla/branch/quota"
	"github.com/cppla/branch/routes"
	"github.com/cppla/branch/session"
	"github.com/cppla/branch/store"
	"github.com/cppla/branch/suggest"
	"github.com/cppla/branch/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	broker := newBroker(cfg)
	st := store.WithEvents(newStore(cfg), broker, utils.Named("events"))

	mailer := utils.NewSMTPMailer(cfg)
	engineOpts := pod.Options{
		Store:              st,
		Suggest:            newSuggester(cfg),
		Encoder:            newEncoder(cfg),
		Scheduler:          pod.NewTimerScheduler(30*time.Second, utils.Named("scheduler")),
		EncouragementDelay: cfg.EncouragementDelay(),
		Logger:             utils.Named("engine"),
	}
	if mailer != nil {
		engineOpts.Mailer = mailer
	}
	engine := pod.NewEngine(engineOpts)
	loader := pod.NewLoader(st, utils.Named("loader"))

	var counter quota.Counter
	if utils.RedisAvailable() {
		counter = quota.NewRedisCounter(utils.GetRedis())
	}
	fallback := quota.NewMemoryCounter()

	factory := func(sessionID string) *session.Controller {
		return session.NewController(session.Config{
			SessionID:         sessionID,
			Engine:            engine,
			Loader:            loader,
			Broker:            broker,
			Gate:              quota.NewGate(sessionID, cfg.QuotaCeiling, cfg.SessionTTL(), counter, fallback, utils.Named("quota")),
			ReconcileInterval: cfg.ReconcileInterval(),
			Logger:            utils.Named("session"),
		})
	}
	// A session left idle for longer than the token lifetime cannot be resumed anyway.
	registry := session.NewRegistry(factory, cfg.SessionTTL(), utils.Named("registry"))
	go sweep(registry, time.Minute)

	r := routes.SetupRouter(registry)

	closeSessions := func(ctx context.Context) {
		registry.CloseAll()
		utils.Sugar.Info("all sessions closed")
	}
	utils.Sugar.Infow("starting server (graceful)", "port", cfg.AppPort, "tls", cfg.TLSEnabled(), "store", cfg.StoreDriver, "broker", cfg.BrokerDriver)
	var err error
	if cfg.TLSEnabled() {
		err = utils.GraceServerTLS(":"+cfg.AppPort, cfg.TLSCertFile, cfg.TLSKeyFile, r, closeSessions)
	} else {
		err = utils.GraceServer(":"+cfg.AppPort, r, closeSessions)
	}
	if err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}

func newStore(cfg config.AppConfig) store.Store {
	if cfg.StoreDriver == "memory" {
		utils.Sugar.Warn("using in-memory store, data is lost on restart")
		return store.NewMemoryStore()
	}
	db, err := config.OpenDatabase(cfg, zap.NewStdLog(utils.Named("sql")), store.Models()...)
	if err != nil {
		utils.Sugar.Fatalw("database unavailable", "error", err)
	}
	return store.NewGormStore(db)
}

func newBroker(cfg config.AppConfig) store.Broker {
	if cfg.BrokerDriver == "redis" && utils.RedisAvailable() {
		return store.NewRedisBroker(utils.GetRedis(), utils.Named("broker"))
	}
	if cfg.BrokerDriver == "redis" {
		utils.Sugar.Warn("redis broker unavailable, change events stay in this process")
	}
	return store.NewMemoryBroker()
}

func newSuggester(cfg config.AppConfig) suggest.Client {
	if cfg.OpenAIAPIKey == "" {
		utils.Sugar.Info("no OpenAI key configured, suggestions disabled")
		return suggest.Noop{}
	}
	client := suggest.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, utils.Named("suggest"))
	if !utils.RedisAvailable() {
		return client
	}
	ttl := time.Duration(cfg.SuggestionCacheTTLSec) * time.Second
	return suggest.NewCached(client, utils.NewRedisCache(utils.GetRedis()), ttl)
}

func newEncoder(cfg config.AppConfig) attachment.Encoder {
	if cfg.AttachmentMode == "file" {
		return &attachment.FileEncoder{Dir: cfg.AttachmentDir, BaseURL: cfg.AttachmentBaseURL}
	}
	return attachment.DataURLEncoder{}
}

func sweep(registry *session.Registry, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for range t.C {
		registry.Sweep()
	}
}
