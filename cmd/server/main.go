package main

import (
	"net/http"
	"os"
	"time"

	"santa.share/config"
	"santa.share/internal/api"
	"santa.share/internal/links"
	"santa.share/internal/logging"
	"santa.share/internal/notify"
	"santa.share/internal/store"

	"github.com/redis/go-redis/v9"
	flag "github.com/spf13/pflag"
)

func main() {
	configPath := flag.StringP("config", "c", "", "path to config file")
	verbose := flag.BoolP("verbose", "v", true, "log requests and startup details")
	debug := flag.BoolP("debug", "d", false, "enable debug output")
	flag.Parse()

	log := logging.Logger{Verbose: *verbose, Debug: *debug, Out: os.Stdout, Err: os.Stderr}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	var backend links.Backend
	if st := initStore(cfg, log); st != nil {
		defer st.Close()
		backend = links.NewStoreBackend(st, cfg.Store.Retention)
	}

	var sender notify.Sender
	if cfg.MailConfigured() {
		sender = notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		})
	} else {
		log.Warnf("SMTP credentials not set, /api/notify will answer 503")
	}
	mailer := notify.NewMailer(sender, log)

	router := api.SetupRouter(backend, mailer, cfg, log)

	log.Infof("Server starting on %s", cfg.Addr())
	log.Infof("Base URL: %s", cfg.Server.BaseURL)
	log.Infof("Store: %s, retention %s", cfg.Store.Type, cfg.Store.Retention)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

// initStore returns nil when storage is disabled.
func initStore(cfg *config.Config, log logging.Logger) store.Store {
	switch cfg.Store.Type {
	case config.StoreNone:
		return nil
	case config.StoreRedis:
		st, err := store.NewRedisStore(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		return st
	default:
		return store.NewMemoryStore(cfg.Store.CleanupInterval)
	}
}
