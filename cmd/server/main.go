package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/section-queue/internal/config"
	"github.com/iliyamo/section-queue/internal/database"
	"github.com/iliyamo/section-queue/internal/handler"
	"github.com/iliyamo/section-queue/internal/logger"
	"github.com/iliyamo/section-queue/internal/notify"
	"github.com/iliyamo/section-queue/internal/queue"
	"github.com/iliyamo/section-queue/internal/realtime"
	"github.com/iliyamo/section-queue/internal/repository"
	"github.com/iliyamo/section-queue/internal/router"
	"github.com/iliyamo/section-queue/internal/service"
)

const serviceName = "section-queue"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	st, err := openStores(cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	rdb := config.NewRedisClient(config.LoadRedisConfig(), log)
	if rdb != nil {
		defer rdb.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Events reach the boards either through the broker, which every
	// replica consumes, or straight from the dispatcher.
	hub := realtime.NewHub(log)
	var publisher *notify.AMQPPublisher
	sink := notify.Sink(hub)
	if cfg.Notify.AMQPURL != "" {
		publisher = notify.NewAMQPPublisher(cfg.Notify.AMQPURL, cfg.Notify.Exchange, log)
		sink = publisher
		consumer := queue.NewConsumer(cfg.Notify.AMQPURL, cfg.Notify.Exchange, func(ev queue.Event) {
			_ = hub.Deliver(ctx, ev)
		}, log)
		go consumer.Run(ctx)
	}
	dispatcher := notify.NewDispatcher(cfg.Notify.Buffer, log, sink)

	locker := service.NewSectionLocker(rdb, cfg.Lock.TTL, cfg.Lock.Wait, log)
	queueStore := service.NewQueueStore(st.tickets, locker, dispatcher, log)
	advancer := service.NewServingAdvancer(st.tickets, locker, dispatcher, log)
	ledger := service.NewCheckStatusLedger(st.entries, st.tickets, st.customers, dispatcher, log)
	sections := service.NewSectionService(st.sections, queueStore, dispatcher, log)
	customers := service.NewCustomerService(st.customers, dispatcher, log)

	if err := seedAdmin(ctx, st.users, cfg, log); err != nil {
		return err
	}

	health := &handler.HealthHandler{}
	if st.db != nil {
		health.DB = st.db
	}
	e := router.New(router.Handlers{
		Health:      health,
		Auth:        handler.NewAuthHandler(cfg, st.users, st.tokens, log),
		Queue:       handler.NewQueueHandler(queueStore, advancer, log),
		CheckStatus: handler.NewCheckStatusHandler(ledger, log),
		Sections:    handler.NewSectionHandler(sections, log),
		Customers:   handler.NewCustomerHandler(customers, log),
		WS:          &handler.WSHandler{Hub: hub, Logger: log},
	}, router.Options{
		JWTSecret: cfg.JWTSecret,
		Redis:     rdb,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     config.LoadCacheConfig(),
		Logger:    log,
	})

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("store", cfg.StoreDriver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Warn("notification drain incomplete", zap.Int64("dropped", dispatcher.Dropped()), zap.Error(err))
	}
	if publisher != nil {
		_ = publisher.Close()
	}
	hub.Close()
	return nil
}

// stores holds the record store of the selected driver.  db is nil for
// the memory driver.
type stores struct {
	db        *sql.DB
	tickets   service.TicketStore
	entries   service.CheckStatusStore
	sections  service.SectionStore
	customers service.CustomerStore
	users     handler.UserStore
	tokens    handler.TokenStore
}

func (s *stores) close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func openStores(cfg config.Config, log *zap.Logger) (*stores, error) {
	if cfg.StoreDriver == config.StoreMemory {
		log.Warn("using in-memory store; data is lost on restart")
		return &stores{
			tickets:   repository.NewMemoryTicketRepo(),
			entries:   repository.NewMemoryCheckStatusRepo(),
			sections:  repository.NewMemorySectionRepo(),
			customers: repository.NewMemoryCustomerRepo(),
			users:     repository.NewMemoryUserRepo(),
			tokens:    repository.NewMemoryTokenRepo(),
		}, nil
	}
	db, err := database.Open(cfg.DB)
	if err != nil {
		return nil, err
	}
	if cfg.DB.Migrate {
		if err := database.Migrate(db, log); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return &stores{
		db:        db,
		tickets:   repository.NewTicketRepo(db),
		entries:   repository.NewCheckStatusRepo(db),
		sections:  repository.NewSectionRepo(db),
		customers: repository.NewCustomerRepo(db),
		users:     repository.NewUserRepo(db),
		tokens:    repository.NewTokenRepo(db),
	}, nil
}
