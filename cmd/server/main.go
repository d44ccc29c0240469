package main

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fidelize/fidelize-backend/internal/config"
	"github.com/fidelize/fidelize-backend/internal/db"
	"github.com/fidelize/fidelize-backend/internal/events"
	"github.com/fidelize/fidelize-backend/internal/handler"
	"github.com/fidelize/fidelize-backend/internal/provider"
	"github.com/fidelize/fidelize-backend/internal/repository"
	"github.com/fidelize/fidelize-backend/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on OS environment variables")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	cfg := config.Load()

	pool, err := db.Init(logger)
	if err != nil {
		logger.Fatal("database init failed", zap.Error(err))
	}
	defer pool.Close()

	campaignRepo := &repository.CampaignRepository{DB: pool}
	taskRepo := &repository.TaskRepository{DB: pool}
	customerRepo := &repository.CustomerRepository{DB: pool}
	optOutRepo := &repository.OptOutRepository{DB: pool}

	gateway := provider.NewGateway(provider.GatewayConfig{
		BaseURL:     cfg.GatewayURL,
		Session:     cfg.GatewaySession,
		Token:       cfg.GatewayToken,
		SendTimeout: cfg.SendTimeout,
	}, logger)

	var publisher *events.Publisher
	if cfg.AMQPURL != "" {
		publisher, err = events.NewPublisher(cfg.AMQPURL, logger)
		if err != nil {
			logger.Warn("outcome events disabled", zap.Error(err))
		} else {
			defer publisher.Close()
		}
	}

	clock := service.NewClock()

	dispatcher := &service.Dispatcher{
		Campaigns: campaignRepo,
		Tasks:     taskRepo,
		OptOuts:   optOutRepo,
		Sender:    gateway,
		Events:    publisher,
		Clock:     clock,
		Logger:    logger,
	}

	scheduler := &service.Scheduler{
		Dispatcher: dispatcher,
		Campaigns:  campaignRepo,
		Tasks:      taskRepo,
		Clock:      clock,
		Logger:     logger,
	}

	campaignService := &service.CampaignService{
		Campaigns: campaignRepo,
		Tasks:     taskRepo,
		Customers: customerRepo,
		Sender:    gateway,
		Scheduler: scheduler,
		Logger:    logger,
	}

	winnerService := &service.WinnerService{
		Sender: gateway,
		Clock:  clock,
		Logger: logger,
	}

	campaignHandler := &handler.CampaignHandler{Service: campaignService}
	winnerHandler := &handler.WinnerHandler{Service: winnerService}
	providerHandler := &handler.ProviderHandler{Sender: gateway}

	r := chi.NewRouter()

	r.Post("/campaigns", campaignHandler.CreateCampaign)
	r.Get("/campaigns", campaignHandler.ListCampaigns)
	r.Get("/campaigns/{id}", campaignHandler.GetCampaign)
	r.Put("/campaigns/{id}", campaignHandler.UpdateCampaign)
	r.Post("/campaigns/{id}/recipients", campaignHandler.PopulateRecipients)
	r.Post("/campaigns/{id}/preview", campaignHandler.PreviewTemplate)
	r.Post("/campaigns/{id}/start", campaignHandler.StartDispatch)
	r.Post("/campaigns/{id}/pause", campaignHandler.PauseDispatch)
	r.Post("/campaigns/{id}/resume", campaignHandler.ResumeDispatch)
	r.Post("/campaigns/{id}/cancel", campaignHandler.CancelCampaign)
	r.Post("/tasks/{taskID}/requeue", campaignHandler.RequeueTask)

	r.Post("/raffles/notify-winners", winnerHandler.NotifyWinners)
	r.Get("/provider/status", providerHandler.Status)

	r.Handle("/metrics", promhttp.Handler())

	logger.Info("server running", zap.String("port", cfg.Port))
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
