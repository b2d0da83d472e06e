package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/maxaizer/vacancy-dispatcher/internal/api"
	"github.com/maxaizer/vacancy-dispatcher/internal/bot"
	"github.com/maxaizer/vacancy-dispatcher/internal/cache"
	"github.com/maxaizer/vacancy-dispatcher/internal/clients/gemini"
	"github.com/maxaizer/vacancy-dispatcher/internal/clients/hh"
	"github.com/maxaizer/vacancy-dispatcher/internal/config"
	"github.com/maxaizer/vacancy-dispatcher/internal/metrics"
	"github.com/maxaizer/vacancy-dispatcher/internal/repositories"
	"github.com/maxaizer/vacancy-dispatcher/internal/services"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot, the ingest API and the schedulers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(runServe)
	},
}

func runServe(ctx context.Context, cfg *config.Config) error {
	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	location, err := cfg.Scheduler.Location()
	if err != nil {
		return err
	}

	db := rt.db.DB
	users := repositories.NewUsersRepository(db)
	backlog := repositories.NewBacklogRepository(db)
	professions := repositories.NewProfessionsRepository(db)
	stopWords := repositories.NewStopWordsRepository(db)
	data := repositories.NewDataRepository(db)

	bus := EventBus.New()

	var embedder services.Embedder
	if cfg.AI.Enabled() {
		aiClient, err := gemini.NewClient(ctx, cfg.AI.Key, gemini.Model(cfg.AI.Model))
		if err != nil {
			return err
		}
		defer aiClient.Close()
		aiClient.SetMinuteRateLimit(cfg.AI.MaxRequestsPerMinute)
		aiClient.SetDayRateLimit(cfg.AI.MaxRequestsPerDay)
		embedder = aiClient
	} else {
		log.Warn("ai key is not set, classifying by keywords only")
	}

	var embeddingStore services.EmbeddingStore
	if rt.redis != nil {
		embeddingStore = cache.NewEmbeddings(rt.redis, cfg.Redis.EmbeddingTTL)
	}

	professionCache := services.NewProfessionCache(professions, stopWords, embedder, embeddingStore)
	if err = professionCache.Reload(ctx); err != nil {
		return err
	}
	if err = professionCache.Subscribe(bus); err != nil {
		return err
	}

	classifier := services.NewClassifier(professionCache, embedder, services.ClassifierSettings{
		Threshold:       cfg.Classifier.Threshold,
		EmbeddingWeight: cfg.Classifier.EmbeddingWeight,
	})
	dedup := services.NewDeduplicator(rt.vacancies)
	dispatcher := services.NewDispatcher(rt.vacancies, users, backlog, rt.queue)
	ingestor := services.NewIngestor(dedup, classifier, rt.vacancies, dispatcher, bus)
	admin := services.NewAdminService(professions, stopWords, rt.vacancies, rt.sender, dedup, bus)
	subscribers := services.NewSubscribers(users, professions)

	if cfg.HH.Enabled {
		hhClient := hh.NewClient()
		hhClient.SetRateLimit(cfg.HH.MaxRequestsPerSecond)
		scraper, err := services.NewHHScraper(hhClient, ingestor, data, professions, services.HHScraperSettings{
			Spec:    cfg.HH.Spec,
			Queries: cfg.HH.Queries,
			AreaID:  cfg.HH.AreaID,
			PerPage: cfg.HH.PerPage,
		}, location)
		if err != nil {
			return err
		}
		scraper.Start()
		defer scraper.Stop()
		admin.SetRescraper(scraper)
	}

	batchScheduler, err := services.NewBatchScheduler(users, backlog, rt.queue, cfg.Scheduler.BatchSpec, location)
	if err != nil {
		return err
	}
	batchScheduler.Start()
	defer batchScheduler.Stop()

	cleaner, err := services.NewVacanciesCleaner(rt.vacancies, backlog, services.CleanupSettings{
		Spec:             cfg.Cleanup.Spec,
		BacklogRetention: cfg.Cleanup.BacklogRetention,
		VacancyRetention: cfg.Cleanup.VacancyRetention,
	}, location)
	if err != nil {
		return err
	}
	cleaner.Start()
	defer cleaner.Stop()

	mailer, err := services.NewMailer(users, professions, rt.queue, cfg.Scheduler.ExpirySpec, location)
	if err != nil {
		return err
	}
	mailer.Start()
	defer mailer.Stop()
	admin.SetMailer(mailer)

	tgbot, err := bot.NewBot(rt.botApi, bus, bot.Dependencies{
		Subscribers: subscribers,
		Admin:       admin,
		Backlog:     dispatcher,
		IsAdmin:     cfg.Bot.IsAdmin,
		AdminChatID: cfg.Bot.AdminChatID,
	})
	if err != nil {
		return err
	}
	go tgbot.Run(ctx)

	if cfg.Delivery.EmbeddedWorker || cfg.Queue.Driver == config.QueueDriverMemory {
		go rt.deliveryWorker().Run(ctx)
	}

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewRouter(ingestor, cfg.HTTP.IngestToken, metrics.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("http server listening on %s", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down services...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("http server shutdown: %v", err)
	}
	tgbot.Stop()
	log.Info("Services stopped.")
	return nil
}
