package main

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

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/go-chi/chi"
	"github.com/golang-migrate/migrate/v4"
	migratep "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jessevdk/go-flags"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pheme-net/pheme/internal/cache"
	rediscache "github.com/pheme-net/pheme/internal/cache/redis"
	"github.com/pheme-net/pheme/internal/censor"
	"github.com/pheme-net/pheme/internal/mail"
	"github.com/pheme-net/pheme/internal/scheduler"
	"github.com/pheme-net/pheme/internal/server"
	"github.com/pheme-net/pheme/internal/service/impl"
	"github.com/pheme-net/pheme/internal/storage"
	"github.com/pheme-net/pheme/internal/storage/postgres"
	"github.com/pheme-net/pheme/internal/tasks"
)

// nolint:lll,gochecknoglobals
var opts = struct {
	Host           string        `long:"http.host" env:"HTTP_HOST" default:"0.0.0.0" description:"IP to listen on"`
	Port           int           `long:"http.port" env:"HTTP_PORT" default:"8080" description:"port to listen on"`
	RequestTimeout time.Duration `long:"http.request_timeout" env:"HTTP_REQUEST_TIMEOUT" default:"45s" description:"request processing timeout"`

	Postgres                   string `long:"postgres" env:"POSTGRES" default:"host=localhost port=5432 user=postgres password=root sslmode=disable" description:"postgres dsn"`
	PostgresMaxOpenConnections int    `long:"postgres.max_open_connections" env:"POSTGRES_MAX_OPEN_CONNECTIONS" default:"0" description:"postgres maximal open connections count, 0 means unlimited"`
	PostgresMaxIdleConnections int    `long:"postgres.max_idle_connections" env:"POSTGRES_MAX_IDLE_CONNECTIONS" default:"5" description:"postgres maximal idle connections count"`
	PostgresMigrations         string `long:"postgres.migrations" env:"POSTGRES_MIGRATIONS" default:"scripts/migrations/postgres" description:"postgres migrations directory"`

	RedisAddr     string `long:"redis.addr" env:"REDIS_ADDR" default:"localhost:6379" description:"redis address"`
	RedisPassword string `long:"redis.password" env:"REDIS_PASSWORD" description:"redis password"`

	SMTPHost     string `long:"smtp.host" env:"SMTP_HOST" default:"localhost" description:"smtp server host"`
	SMTPPort     int    `long:"smtp.port" env:"SMTP_PORT" default:"587" description:"smtp server port"`
	SMTPUsername string `long:"smtp.username" env:"SMTP_USERNAME" description:"smtp username"`
	SMTPPassword string `long:"smtp.password" env:"SMTP_PASSWORD" description:"smtp password"`
	SMTPFrom     string `long:"smtp.from" env:"SMTP_FROM" default:"noreply@pheme.local" description:"sender address of outgoing emails"`

	PublicURL    string        `long:"public_url" env:"PUBLIC_URL" default:"http://localhost:8080" description:"public address posts are linked under in emails"`
	CensorWords  []string      `long:"censor.words" env:"CENSOR_WORDS" env-delim:"," description:"words masked in outgoing emails"`
	DigestWindow time.Duration `long:"digest.window" env:"DIGEST_WINDOW" default:"168h" description:"rolling window of the weekly digest"`

	SchedulerEnabled bool   `long:"scheduler.enabled" env:"SCHEDULER_ENABLED" description:"run the weekly beat in this process"`
	Timezone         string `long:"timezone" env:"TIMEZONE" default:"UTC" description:"time zone of the weekly trigger"`

	LogLevel string `long:"log.level" env:"LOG_LEVEL" default:"info" description:"Log level" choice:"debug" choice:"info" choice:"warning" choice:"error"`
}{}

var errTerminated = errors.New("terminated")

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.ShortDescription = "Pheme"
	parser.LongDescription = "Pheme publishing backend"

	_, err := parser.Parse()

	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			parser.WriteHelp(os.Stdout)
			os.Exit(0)
		}
		logrus.WithError(err).Fatal("error occurred while parsing flags")
	}

	lvl, _ := logrus.ParseLevel(opts.LogLevel) // err will always be nil
	logrus.SetLevel(lvl)

	logrus.Info("service started")
	logrus.Infof("%+v", opts)

	db := mustGetDB()
	s := postgres.New(db)

	c, err := rediscache.New(opts.RedisAddr, opts.RedisPassword)
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect to redis")
	}

	renderer, err := mail.NewRenderer(censor.New(opts.CensorWords...), opts.PublicURL)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create renderer")
	}

	sender := mail.NewSMTPSender(opts.SMTPHost, opts.SMTPPort, opts.SMTPUsername, opts.SMTPPassword, opts.SMTPFrom)

	wmLogger := tasks.NewLoggerAdapter(logrus.WithField("package", "tasks"))
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, wmLogger)

	queue := tasks.NewQueue(pubsub)

	worker, err := tasks.NewWorker(
		pubsub,
		wmLogger,
		tasks.NewNotifier(s, renderer, sender),
		tasks.NewDigest(s, renderer, sender, opts.DigestWindow),
		tasks.NewNewsletter(s, renderer, sender, opts.DigestWindow),
	)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create worker")
	}

	svc := impl.New(s, c, queue)

	r := chi.NewMux()
	server.SetupRouter(svc, r, opts.RequestTimeout)
	r.Get("/health", healthHandler(s, c))

	srv := http.Server{
		Addr:    fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Handler: r,
	}

	ctx, cancel := context.WithCancel(context.Background())

	gr, _ := errgroup.WithContext(ctx)
	gr.Go(func() error {
		return worker.Run(ctx)
	})
	gr.Go(srv.ListenAndServe)
	gr.Go(func() error {
		<-ctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		return srv.Shutdown(shutdownCtx)
	})

	if opts.SchedulerEnabled {
		gr.Go(func() error {
			return runBeat(ctx, queue)
		})
	}

	gr.Go(func() error {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

		s := <-sigs

		logrus.Infof("terminating by %s signal", s)

		cancel()

		return errTerminated
	})

	logrus.Info("service started")

	if err := gr.Wait(); err != nil && !errors.Is(err, errTerminated) && !errors.Is(err, http.ErrServerClosed) {
		logrus.WithError(err).Fatal("service unexpectedly closed")
	}
}

func mustGetDB() *sql.DB {
	db, err := sql.Open("postgres", opts.Postgres)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create postgres connection")
	}
	db.SetMaxOpenConns(opts.PostgresMaxOpenConnections)
	db.SetMaxIdleConns(opts.PostgresMaxIdleConnections)

	if err := db.PingContext(context.Background()); err != nil {
		logrus.WithError(err).Fatal("failed to ping postgres")
	}

	driver, err := migratep.WithInstance(db, &migratep.Config{})
	if err != nil {
		logrus.WithError(err).Fatal("failed to create database migrate driver")
	}

	migrator, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", opts.PostgresMigrations), "postgres", driver)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create migrator")
	}

	switch v, d, err := migrator.Version(); err {
	case nil:
		logrus.Infof("database version %d with dirty state %t", v, d)
	case migrate.ErrNilVersion:
		logrus.Info("database version: nil")
	default:
		logrus.WithError(err).Fatal("failed to get version")
	}

	switch err := migrator.Up(); err {
	case nil:
		logrus.Info("database was migrated")
	case migrate.ErrNoChange:
		logrus.Info("database is up-to-date")
	default:
		logrus.WithError(err).Fatal("failed to migrate db")
	}

	return db
}

func runBeat(ctx context.Context, queue tasks.Queue) error {
	loc, err := time.LoadLocation(opts.Timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone: %w", err)
	}

	beat := scheduler.New(loc, logrus.WithField("package", "scheduler"))

	if err := beat.Add(scheduler.WeeklySpec, "enqueue_weekly_digest", scheduler.JobFunc(queue.EnqueueWeeklyDigest)); err != nil {
		return err
	}
	if err := beat.Add(scheduler.WeeklySpec, "enqueue_weekly_newsletter", scheduler.JobFunc(queue.EnqueueWeeklyNewsletter)); err != nil {
		return err
	}

	return beat.Run(ctx)
}

func healthHandler(s storage.Storage, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := s.Ping(ctx); err != nil {
			logrus.WithError(err).Error("health: postgres is unreachable")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		if _, err := c.Get(ctx, "health"); err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			logrus.WithError(err).Error("health: redis is unreachable")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}
