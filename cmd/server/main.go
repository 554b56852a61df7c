package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cardms/internal/audit"
	"cardms/internal/config"
	"cardms/internal/db"
	"cardms/internal/events/kafka"
	"cardms/internal/handlers"
	"cardms/internal/pan"
	"cardms/internal/services"
	"cardms/internal/store"
	"cardms/internal/websocket"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()
	log := newLogger(cfg)

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect database")
	}
	defer database.Close()

	users := store.NewUserStore(database)
	cards := store.NewCardStore(database)
	transactions := store.NewTransactionStore(database)
	capabilities := store.NewCapabilityStore(database)
	auditLogs := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database)

	var publisher audit.Publisher
	var kafkaPublisher *kafka.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher = kafka.NewPublisher(cfg.KafkaBrokers)
		publisher = kafkaPublisher
		log.WithField("brokers", cfg.KafkaBrokers).Info("audit events will be published to kafka")
	}
	recorder := audit.NewRecorder(auditLogs, publisher, log, cfg.AuditQueueSize)

	codec := pan.NewCodec(cfg.EncryptionSecret)
	generator := pan.NewGenerator(pan.DefaultBIN)
	hub := websocket.NewHub()

	cardService := services.NewCardService(txRunner, cards, users, generator, codec, recorder, log)
	transferService := services.NewTransferService(txRunner, cards, transactions, codec, recorder, hub, log)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.ExpirySweepSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		expired, err := cardService.ExpireCards(ctx)
		if err != nil {
			log.WithError(err).Error("expiry sweep failed")
			return
		}
		if expired > 0 {
			log.WithField("expired", expired).Info("expiry sweep marked cards expired")
		}
	}); err != nil {
		log.WithError(err).Fatal("invalid expiry sweep schedule")
	}
	scheduler.Start()

	handler := handlers.New(txRunner, cfg, users, capabilities, auditLogs, recorder, cardService, transferService, hub, log)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("card management API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("shutdown error")
	}
	<-scheduler.Stop().Done()
	recorder.Close()
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			log.WithError(err).Error("failed to close kafka publisher")
		}
	}
}

func newLogger(cfg config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}
