package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"

	"eventhub/cmd/buildCFG"
	"eventhub/internal/api/api"
	"eventhub/internal/calendar"
	rabbitReader "eventhub/internal/consumerWorker"
	"eventhub/internal/mailer"
	"eventhub/internal/rabbit"
	"eventhub/internal/repo"
	"eventhub/internal/seed"
	"eventhub/internal/service"
	"eventhub/pkg/validator"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	zlog.Init()
	log := zlog.Logger

	app := &cli.App{
		Name:  "eventhub",
		Usage: "Discover events, host your own and manage RSVPs.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   "config.yaml",
				Usage:   "path to the YAML config file",
				EnvVars: []string{"EVENTHUB_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(&log),
			migrateCommand(&log),
			seedCommand(&log),
			exportCommand(&log),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("eventhub failed")
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.New()
	if err := cfg.Load(c.String("config"), "", "EVENTHUB"); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func openPostgres(cfg *config.Config, log *zerolog.Logger) (*repo.Postgres, error) {
	masterDSN, slaveDSNs, poolOptions, err := buildCFG.BuildDBConfig(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to build DB config: %w", err)
	}
	db, err := dbpg.New(masterDSN, slaveDSNs, poolOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}
	pg, err := repo.NewPostgres(db, log)
	if err != nil {
		return nil, err
	}
	log.Info().Msg("Database connected successfully")
	return pg, nil
}

func openRepository(cfg *config.Config, log *zerolog.Logger) (repo.Repository, error) {
	sc, err := buildCFG.BuildStorageConfig(cfg, log)
	if err != nil {
		return nil, err
	}
	if sc.Driver == buildCFG.StorageKV {
		store, err := repo.NewKVStore(sc.KVPath, log)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", sc.KVPath).Msg("key-value store opened")
		return store, nil
	}

	pg, err := openPostgres(cfg, log)
	if err != nil {
		return nil, err
	}
	if cfg.GetBool("postgres.auto_migrate") {
		if err := pg.MigrateUp(); err != nil {
			_ = pg.Close()
			return nil, err
		}
	}
	return pg, nil
}

func serveCommand(log *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API and the notification worker.",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			serverCfg := buildCFG.BuildServerConfig(cfg, log)

			repository, err := openRepository(cfg, log)
			if err != nil {
				return err
			}
			defer repository.Close()

			notifyCfg, err := buildCFG.BuildNotifyConfig(cfg, log)
			if err != nil {
				return err
			}
			validator.SetLocation(notifyCfg.Location)

			rabbitCfg, err := buildCFG.BuildRabbitConfig(cfg, log)
			if err != nil {
				return err
			}

			var (
				publisher rabbit.Publisher = rabbit.Discard{}
				reader    *rabbitReader.Reader
			)
			workerCtx, cancelWorkers := context.WithCancel(c.Context)
			defer cancelWorkers()

			if rabbitCfg.Enabled {
				rmq, err := rabbit.NewRabbit(rabbitCfg.Url, rabbitCfg.Exchange, rabbitCfg.Queue)
				if err != nil {
					return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
				}
				defer rmq.Close()
				publisher = rmq

				var sender mailer.Sender = mailer.LogSender{Log: log}
				if notifyCfg.MailEnabled {
					sender = mailer.NewSMTP(notifyCfg.Mail, log)
				}
				reader = rabbitReader.NewReader(rmq, repository, sender, log)
				reader.Start(workerCtx)
			}

			serviceInstance := service.NewService(repository, log, publisher, service.Config{
				SessionTTL:   notifyCfg.SessionTTL,
				ReminderLead: notifyCfg.ReminderLead,
				Location:     notifyCfg.Location,
			})
			srv := &http.Server{
				Addr:              ":" + serverCfg.Port,
				Handler:           api.NewRouters(&api.Routers{Service: serviceInstance}),
				ReadHeaderTimeout: 5 * time.Second,
			}

			serverErrChan := make(chan error, 1)
			go func() {
				log.Info().Msgf("Starting server on %s", serverCfg.Port)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErrChan <- fmt.Errorf("failed to start server: %w", err)
				}
			}()

			signalChan := make(chan os.Signal, 1)
			signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

			var runErr error
			select {
			case sig := <-signalChan:
				log.Info().Msgf("Received signal %s. Initiating shutdown...", sig)
			case runErr = <-serverErrChan:
				log.Error().Err(runErr).Msg("server error")
			}

			cancelWorkers()
			if reader != nil {
				reader.Stop()
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Error shutting down server")
			}

			log.Info().Msg("Shutdown complete")
			return runErr
		},
	}
}

func migrateCommand(log *zerolog.Logger) *cli.Command {
	run := func(up bool) cli.ActionFunc {
		return func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			pg, err := openPostgres(cfg, log)
			if err != nil {
				return err
			}
			defer pg.Close()
			if up {
				return pg.MigrateUp()
			}
			return pg.MigrateDown()
		}
	}

	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply or roll back the postgres schema.",
		Subcommands: []*cli.Command{
			{Name: "up", Usage: "apply all migrations", Action: run(true)},
			{Name: "down", Usage: "roll back all migrations", Action: run(false)},
		},
	}
}

func seedCommand(log *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Create sample events when the store is empty.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "password",
				Usage:   "password for the sample organizer account",
				EnvVars: []string{"EVENTHUB_SEED_PASSWORD"},
				Value:   "changeme",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			repository, err := openRepository(cfg, log)
			if err != nil {
				return err
			}
			defer repository.Close()

			n, err := seed.Run(c.Context, repository, c.String("password"), log, time.Now())
			if err != nil {
				return err
			}
			fmt.Printf("created %d sample events\n", n)
			return nil
		},
	}
}

func exportCommand(log *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:      "export-ics",
		Usage:     "Write an event as an iCalendar file to stdout.",
		ArgsUsage: "<event-id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("exactly one event id is required", 2)
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			notifyCfg, err := buildCFG.BuildNotifyConfig(cfg, log)
			if err != nil {
				return err
			}
			repository, err := openRepository(cfg, log)
			if err != nil {
				return err
			}
			defer repository.Close()

			e, err := repository.GetEventByID(c.Context, c.Args().First())
			if err != nil {
				return err
			}
			var people calendar.Contacts
			if organizer, err := repository.GetUserByID(c.Context, e.OrganizerID); err == nil {
				people.Organizer = organizer.Email
			}
			cal, err := calendar.Build(e, people, notifyCfg.Location, time.Now())
			if err != nil {
				return err
			}
			return calendar.Write(os.Stdout, cal)
		},
	}
}
