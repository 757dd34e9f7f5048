package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jessevdk/go-flags"
	"nuclight.org/tg-wordpress-bot/app/aggregator"
	"nuclight.org/tg-wordpress-bot/app/publisher"
	"nuclight.org/tg-wordpress-bot/app/storage"
	"nuclight.org/tg-wordpress-bot/app/telegram"
	e "nuclight.org/tg-wordpress-bot/pkg/entities"
	"nuclight.org/tg-wordpress-bot/pkg/logger"
	"nuclight.org/tg-wordpress-bot/pkg/wordpress"
)

var opts struct {
	TelegramAPIToken   string        `long:"telegram-api-token" env:"TELEGRAM_BOT_TOKEN" description:"telegram bot api token"`
	TelegramChannelID  int64         `long:"telegram-channel-id" env:"TELEGRAM_CHANNEL_ID" description:"id of the source channel"`
	AdminUserID        int64         `long:"admin-user-id" env:"ADMIN_USER_ID" description:"telegram id of the operator"`
	TelegramWorkersNum int           `long:"telegram-workers-num" env:"TELEGRAM_WORKERS_NUM" default:"5" description:"number of workers for telegram bot"`
	WPURL              string        `long:"wp-url" env:"WP_URL" description:"wordpress base url"`
	WPUsername         string        `long:"wp-username" env:"WP_USERNAME" description:"wordpress api username"`
	WPPassword         string        `long:"wp-password" env:"WP_PASSWORD" description:"wordpress api application password"`
	GroupQuietInterval time.Duration `long:"group-quiet-interval" env:"GROUP_QUIET_INTERVAL" default:"2s" description:"how long a media group must stay quiet before publishing"`
	DBPath             string        `long:"db-path" env:"DB_PATH" description:"path to the sqlite publish journal, empty disables journaling"`
	SentryDSN          string        `long:"sentry-dsn" env:"SENTRY_DSN" description:"sentry dsn for error reporting"`
	Debug              bool          `long:"debug" env:"DEBUG" description:"enable debug logging"`
}

var Revision = "dev"

func main() {
	_, err := flags.Parse(&opts)
	if err != nil {
		os.Exit(1)
	}

	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	log := logger.NewLogger(level)
	log.Info("starting bot", "revision", Revision)

	// missing settings are reported but do not block the start, the
	// collaborator calls fail on their own at first use
	reportMissing(log, map[string]string{
		"TELEGRAM_BOT_TOKEN": opts.TelegramAPIToken,
		"WP_URL":             opts.WPURL,
		"WP_USERNAME":        opts.WPUsername,
		"WP_PASSWORD":        opts.WPPassword,
	})
	if opts.TelegramChannelID == 0 {
		log.Error("TELEGRAM_CHANNEL_ID is not set")
	}
	if opts.AdminUserID == 0 {
		log.Error("ADMIN_USER_ID is not set")
	}

	if opts.SentryDSN != "" {
		err = sentry.Init(sentry.ClientOptions{
			Dsn:     opts.SentryDSN,
			Release: Revision,
		})
		if err != nil {
			log.Error("initializing sentry", "error", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var journal *storage.SQLite
	if opts.DBPath != "" {
		journal, err = storage.NewSQLite(ctx, opts.DBPath)
		if err != nil {
			log.Error("creating sqlite3 database", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := journal.Close(); err != nil {
				log.Error("closing sqlite3 database", "error", err)
			}
		}()
	}

	wp := &wordpress.Client{
		BaseURL:    opts.WPURL,
		Username:   opts.WPUsername,
		Password:   opts.WPPassword,
		HTTPClient: http.DefaultClient,
	}

	if err := wp.Check(ctx); err != nil {
		log.Error("wordpress connectivity check failed", "error", err)
	} else {
		log.Info("wordpress connection established")
	}

	bot := &telegram.Client{
		Log:         log,
		APIToken:    opts.TelegramAPIToken,
		WorkersNum:  opts.TelegramWorkersNum,
		ChannelID:   opts.TelegramChannelID,
		AdminID:     opts.AdminUserID,
		StatusCheck: wp.Check,
	}

	svc := &publisher.Service{
		Log:      log,
		Uploader: wp,
		Poster:   wp,
		Notifier: bot,
	}
	if journal != nil {
		svc.Journal = journal
		bot.Journal = journal
	}

	window := &aggregator.Window{
		Log:   log,
		Quiet: opts.GroupQuietInterval,
		Fire: func(post e.ChannelPost) {
			svc.PublishGroup(ctx, post)
		},
	}

	bot.Publisher = svc
	bot.Collector = window

	err = bot.Start(ctx)
	if err != nil {
		log.Error("starting bot", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	log.Info("stopping bot")

	bot.Wait()
	window.Flush()

	os.Exit(0)
}

func reportMissing(log logger.Logger, values map[string]string) {
	for name, value := range values {
		if value == "" {
			log.Error(name + " is not set")
		}
	}
}
