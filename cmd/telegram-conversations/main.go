package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/sonyflake"
	"go.uber.org/zap"

	"github.com/Andres3232/telegram-conversations/internal/config"
	"github.com/Andres3232/telegram-conversations/internal/consume"
	"github.com/Andres3232/telegram-conversations/internal/db"
	"github.com/Andres3232/telegram-conversations/internal/ingest"
	"github.com/Andres3232/telegram-conversations/internal/metrics"
	"github.com/Andres3232/telegram-conversations/internal/mq"
	"github.com/Andres3232/telegram-conversations/internal/reply"
	"github.com/Andres3232/telegram-conversations/internal/repo"
	"github.com/Andres3232/telegram-conversations/internal/telegram"
)

var Version = "dev"

func main() {
	var cfgPaths string
	flag.StringVar(&cfgPaths, "c", "./config.yml", "config file path (supports: a.yml,b.yml)")
	flag.Parse()

	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg, err := config.Load(cfgPaths)
	if err != nil {
		log.Fatal("load config failed", zap.Error(err))
	}
	log.Info("telegram-conversations starting", zap.String("version", Version))

	metrics.Register()
	go serveMetrics(cfg.Metrics.Addr, log)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	mysql, err := db.Open(ctx, db.Options{
		DSN:          cfg.MySQL.DSN,
		MaxOpenConns: cfg.MySQL.MaxOpenConns,
		MaxIdleConns: cfg.MySQL.MaxIdleConns,
		ConnMaxLife:  cfg.MySQL.ConnMaxLife,
		ConnMaxIdle:  cfg.MySQL.ConnMaxIdle,
	})
	if err != nil {
		cancel()
		log.Fatal("mysql init failed", zap.Error(err))
	}
	defer mysql.Close()

	err = repo.EnsureSchema(ctx, mysql)
	cancel()
	if err != nil {
		log.Fatal("schema bootstrap failed", zap.Error(err))
	}

	sf := sonyflake.NewSonyflake(sonyflake.Settings{})
	if sf == nil {
		log.Fatal("sonyflake init failed")
	}

	conversations := repo.NewConversationRepo(mysql, sf)
	messages := repo.NewMessageRepo(mysql, sf)
	syncState := repo.NewSyncStateRepo(mysql)

	tg, err := telegram.NewClient(telegram.Options{
		Token:       cfg.Telegram.BotToken,
		APIEndpoint: cfg.Telegram.APIEndpoint,
	}, log)
	if err != nil {
		log.Fatal("telegram init failed", zap.Error(err))
	}

	publisher := mq.NewPublisher(mq.ProducerOptions{
		NameServer: cfg.RocketMQ.NameServer,
		Topic:      cfg.RocketMQ.Topic,
		Tag:        cfg.RocketMQ.Tag,
		Group:      cfg.RocketMQ.ProducerGroup,
	})
	defer publisher.Close()

	syncer := ingest.NewSyncer(tg, syncState, conversations, messages, publisher, log)
	poller := ingest.NewPoller(syncer, log, ingest.PollerOptions{
		Tick: cfg.Polling.Tick,
		// Read per tick: an admin surface or config reload can swap the
		// values without restarting the loop.
		Settings: func() ingest.Settings {
			return ingest.Settings{
				Enabled:        cfg.Polling.Enabled,
				Interval:       cfg.Polling.Interval,
				FetchLimit:     cfg.Polling.FetchLimit,
				TimeoutSeconds: cfg.Polling.TimeoutSeconds,
			}
		},
	})
	poller.Start(context.Background())
	defer poller.Stop()

	var consumer *mq.Consumer
	if cfg.Consumer.Enabled {
		var dedupe consume.Deduper
		if cfg.Redis.Addr != "" {
			rd, err := consume.NewRedisDeduper(consume.RedisOptions{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				Database: cfg.Redis.Database,
				TTL:      cfg.Dedupe.TTL,
			})
			if err != nil {
				log.Fatal("redis init failed", zap.Error(err))
			}
			defer rd.Close()
			dedupe = rd
		}

		var responder reply.Responder
		if cfg.Reply.AIEnabled {
			responder = reply.NewOpenAIResponder(reply.OpenAIOptions{
				APIKey:  cfg.Reply.APIKey,
				APIBase: cfg.Reply.APIBase,
				Model:   cfg.Reply.Model,
			})
		}

		generator := reply.NewGenerator(tg, messages, responder, log)
		router := consume.NewRouter(generator, dedupe, log)

		consumer, err = mq.NewConsumer(mq.ConsumerOptions{
			NameServer: cfg.RocketMQ.NameServer,
			Topic:      cfg.RocketMQ.Topic,
			Tag:        cfg.RocketMQ.Tag,
			Group:      cfg.RocketMQ.ConsumerGroup,
		}, log)
		if err != nil {
			log.Fatal("mq consumer init failed", zap.Error(err))
		}
		if err := consumer.Start(router.Handle); err != nil {
			log.Fatal("mq consumer start failed", zap.Error(err))
		}
	} else {
		log.Info("mq consumer disabled")
	}

	log.Info("telegram-conversations started",
		zap.String("topic", cfg.RocketMQ.Topic),
		zap.Bool("polling", cfg.Polling.Enabled),
		zap.Bool("consumer", cfg.Consumer.Enabled),
		zap.String("metrics", cfg.Metrics.Addr),
	)

	sig := make(chan os.Signal, 2)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutdown signal received")
	if consumer != nil {
		_ = consumer.Shutdown()
	}
	log.Info("telegram-conversations stopped")
}

func serveMetrics(addr string, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 2 * time.Second,
	}
	log.Info("metrics listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("metrics server error", zap.Error(err))
	}
}
