package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pheme-net/pheme/internal/censor"
	"github.com/pheme-net/pheme/internal/mail"
	"github.com/pheme-net/pheme/internal/scheduler"
	"github.com/pheme-net/pheme/internal/storage/postgres"
	"github.com/pheme-net/pheme/internal/tasks"
)

// nolint:lll,gochecknoglobals
var opts = struct {
	Postgres                   string `long:"postgres" env:"POSTGRES" default:"host=localhost port=5432 user=postgres password=root sslmode=disable" description:"postgres dsn"`
	PostgresMaxOpenConnections int    `long:"postgres.max_open_connections" env:"POSTGRES_MAX_OPEN_CONNECTIONS" default:"0" description:"postgres maximal open connections count, 0 means unlimited"`
	PostgresMaxIdleConnections int    `long:"postgres.max_idle_connections" env:"POSTGRES_MAX_IDLE_CONNECTIONS" default:"5" description:"postgres maximal idle connections count"`

	SMTPHost     string `long:"smtp.host" env:"SMTP_HOST" default:"localhost" description:"smtp server host"`
	SMTPPort     int    `long:"smtp.port" env:"SMTP_PORT" default:"587" description:"smtp server port"`
	SMTPUsername string `long:"smtp.username" env:"SMTP_USERNAME" description:"smtp username"`
	SMTPPassword string `long:"smtp.password" env:"SMTP_PASSWORD" description:"smtp password"`
	SMTPFrom     string `long:"smtp.from" env:"SMTP_FROM" default:"noreply@pheme.local" description:"sender address of outgoing emails"`

	PublicURL    string        `long:"public_url" env:"PUBLIC_URL" default:"http://localhost:8080" description:"public address posts are linked under in emails"`
	CensorWords  []string      `long:"censor.words" env:"CENSOR_WORDS" env-delim:"," description:"words masked in outgoing emails"`
	DigestWindow time.Duration `long:"digest.window" env:"DIGEST_WINDOW" default:"168h" description:"rolling window of the weekly digest"`

	Timezone string `long:"timezone" env:"TIMEZONE" default:"UTC" description:"time zone of the weekly trigger"`

	LogLevel string `long:"log.level" env:"LOG_LEVEL" default:"info" description:"Log level" choice:"debug" choice:"info" choice:"warning" choice:"error"`
}{}

var errTerminated = errors.New("terminated")

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.ShortDescription = "Pheme scheduler"
	parser.LongDescription = "Standalone weekly digest scheduler"

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

	logrus.Info("scheduler started")
	logrus.Infof("%+v", opts)

	db, err := sql.Open("postgres", opts.Postgres)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create postgres connection")
	}
	db.SetMaxOpenConns(opts.PostgresMaxOpenConnections)
	db.SetMaxIdleConns(opts.PostgresMaxIdleConnections)

	if err := db.PingContext(context.Background()); err != nil {
		logrus.WithError(err).Fatal("failed to ping postgres")
	}

	s := postgres.New(db)

	renderer, err := mail.NewRenderer(censor.New(opts.CensorWords...), opts.PublicURL)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create renderer")
	}

	sender := mail.NewSMTPSender(opts.SMTPHost, opts.SMTPPort, opts.SMTPUsername, opts.SMTPPassword, opts.SMTPFrom)

	loc, err := time.LoadLocation(opts.Timezone)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load timezone")
	}

	sch := scheduler.New(loc, logrus.WithField("package", "scheduler"))

	digest := tasks.NewDigest(s, renderer, sender, opts.DigestWindow)
	newsletter := tasks.NewNewsletter(s, renderer, sender, opts.DigestWindow)

	if err := sch.Add(scheduler.WeeklySpec, "send_weekly_digest", digest); err != nil {
		logrus.WithError(err).Fatal("failed to add digest job")
	}
	if err := sch.Add(scheduler.WeeklySpec, "send_weekly_newsletter", newsletter); err != nil {
		logrus.WithError(err).Fatal("failed to add newsletter job")
	}

	ctx, cancel := context.WithCancel(context.Background())

	gr, _ := errgroup.WithContext(ctx)
	gr.Go(func() error {
		return sch.Run(ctx)
	})
	gr.Go(func() error {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

		s := <-sigs

		logrus.Infof("terminating by %s signal", s)

		cancel()

		return errTerminated
	})

	if err := gr.Wait(); err != nil && !errors.Is(err, errTerminated) {
		logrus.WithError(err).Fatal("scheduler unexpectedly closed")
	}
}
