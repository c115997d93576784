package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"

	"steptracker/config"
	"steptracker/engine"
	"steptracker/messaging"
	"steptracker/redisstore"
	"steptracker/store"
	"steptracker/www"
)

func main() {
	configPath := flag.String("config", "steptracker.yaml", "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	flag.Parse()

	if *debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *port > 0 {
		cfg.Web.Port = *port
	}

	if cfg.Log.File != "" {
		logFile := &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
			Compress:   cfg.Log.Compress,
		}
		defer logFile.Close()
		log.SetOutput(io.MultiWriter(os.Stderr, logFile))
	}

	db, err := store.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	log.Printf("steptracker: database open (%s)", db.Driver())

	// Redis holds sample history only when the recorded source is configured for it
	var samples *redisstore.Store
	if cfg.Motion.Recorded.Backend == "redis" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("steptracker: redis not reachable yet (%v)", err)
		} else {
			log.Printf("steptracker: redis connected (%s)", cfg.Redis.Address)
		}
		cancel()
		samples = redisstore.New(redisClient)
	}

	eng := engine.New(engine.Config{
		AppConfig: cfg,
		DB:        db,
		Redis:     samples,
		LogFunc:   log.Printf,
		Debug:     *debug,
	})
	if err := eng.Start(); err != nil {
		log.Fatalf("start engine: %v", err)
	}
	defer eng.Stop()

	if cfg.Messaging.Enabled {
		msgClient := messaging.NewClient(&cfg.Messaging, cfg.ClientID())
		defer msgClient.Close()
		if err := msgClient.Connect(); err != nil {
			log.Printf("steptracker: messaging connect failed (%v), continuing without broker", err)
		} else {
			log.Printf("steptracker: messaging connected (%s)", cfg.Messaging.Backend)

			publisher := messaging.NewEventPublisher(msgClient, eng.Events, cfg.Messaging.EventsTopic)
			publisher.Start()
			defer publisher.Stop()

			if sampleStore := eng.Samples(); sampleStore != nil && cfg.Messaging.SamplesTopic != "" {
				ingestor := messaging.NewSampleIngestor(msgClient, sampleStore, cfg.Messaging.SamplesTopic, cfg.InstanceName)
				if err := ingestor.Start(); err != nil {
					log.Printf("steptracker: sample ingestor subscribe: %v", err)
				} else {
					log.Printf("steptracker: sample ingestor listening on %s", cfg.Messaging.SamplesTopic)
				}
			}

			hb := messaging.NewHeartbeater(msgClient, eng, cfg.InstanceName, cfg.Messaging.StatusTopic, cfg.Messaging.HeartbeatInterval)
			hb.Start()
			defer hb.Stop()
		}
	}

	router, stopWeb := www.NewRouter(eng)
	defer stopWeb()

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	server := &http.Server{Addr: addr, Handler: router}

	go func() {
		log.Printf("steptracker: listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("steptracker: shutting down...")

	// Stop SSE event hub first so long-lived connections close
	stopWeb()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("http server shutdown: %v", err)
	}
}
