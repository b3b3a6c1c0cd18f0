package buildCFG

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"eventhub/internal/mailer"
)

// Source is the part of the config loader the builders read from.
type Source interface {
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetDuration(key string) time.Duration
}

const (
	StorageKV       = "kv"
	StoragePostgres = "postgres"
)

type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

type StorageConfig struct {
	Driver string
	KVPath string
}

type RabbitConfig struct {
	Enabled  bool
	Url      string
	Exchange string
	Queue    string
}

type NotifyConfig struct {
	SessionTTL   time.Duration
	ReminderLead time.Duration
	Location     *time.Location
	MailEnabled  bool
	Mail         mailer.Config
}

func BuildServerConfig(cfg Source, log *zerolog.Logger) ServerConfig {
	port := cfg.GetString("server.port")
	if port == "" {
		log.Warn().Msg("server.port is not set, using 8080")
		port = "8080"
	}
	timeout := cfg.GetDuration("server.shutdown_timeout")
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return ServerConfig{Port: port, ShutdownTimeout: timeout}
}

func BuildStorageConfig(cfg Source, log *zerolog.Logger) (StorageConfig, error) {
	sc := StorageConfig{
		Driver: cfg.GetString("storage.driver"),
		KVPath: cfg.GetString("storage.kv_path"),
	}
	if sc.Driver == "" {
		sc.Driver = StorageKV
	}
	switch sc.Driver {
	case StorageKV:
		if sc.KVPath == "" {
			sc.KVPath = "eventhub.db"
			log.Warn().Str("path", sc.KVPath).Msg("storage.kv_path is not set, using default")
		}
	case StoragePostgres:
	default:
		return StorageConfig{}, fmt.Errorf("unknown storage driver %q", sc.Driver)
	}
	return sc, nil
}

// BuildDBConfig returns the master DSN, replica DSNs and pool options for dbpg.
func BuildDBConfig(cfg Source, log *zerolog.Logger) (string, []string, *dbpg.Options, error) {
	master := cfg.GetString("postgres.master_dsn")
	if master == "" {
		host := cfg.GetString("postgres.host")
		if host == "" {
			return "", nil, nil, fmt.Errorf("postgres.master_dsn or postgres.host must be set")
		}
		port := cfg.GetInt("postgres.port")
		if port == 0 {
			port = 5432
		}
		sslmode := cfg.GetString("postgres.sslmode")
		if sslmode == "" {
			sslmode = "disable"
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(cfg.GetString("postgres.user"), cfg.GetString("postgres.password")),
			Host:     fmt.Sprintf("%s:%d", host, port),
			Path:     cfg.GetString("postgres.dbname"),
			RawQuery: "sslmode=" + sslmode,
		}
		master = u.String()
	}

	opts := &dbpg.Options{
		MaxOpenConns:    cfg.GetInt("postgres.max_open_conns"),
		MaxIdleConns:    cfg.GetInt("postgres.max_idle_conns"),
		ConnMaxLifetime: cfg.GetDuration("postgres.conn_max_lifetime"),
	}
	if opts.MaxOpenConns == 0 {
		opts.MaxOpenConns = 10
	}
	if opts.MaxIdleConns == 0 {
		opts.MaxIdleConns = 5
	}

	var slaves []string
	for _, dsn := range strings.Split(cfg.GetString("postgres.slave_dsns"), ",") {
		if dsn = strings.TrimSpace(dsn); dsn != "" {
			slaves = append(slaves, dsn)
		}
	}
	log.Info().Int("replicas", len(slaves)).Msg("postgres config loaded")
	return master, slaves, opts, nil
}

func BuildRabbitConfig(cfg Source, log *zerolog.Logger) (RabbitConfig, error) {
	rc := RabbitConfig{
		Enabled:  cfg.GetBool("rabbit.enabled"),
		Url:      cfg.GetString("rabbit.url"),
		Exchange: cfg.GetString("rabbit.exchange"),
		Queue:    cfg.GetString("rabbit.queue"),
	}
	if !rc.Enabled {
		log.Info().Msg("rabbit is disabled, notifications will be dropped")
		return rc, nil
	}
	if rc.Url == "" {
		return RabbitConfig{}, fmt.Errorf("rabbit.url must be set when rabbit is enabled")
	}
	if rc.Exchange == "" {
		rc.Exchange = "eventhub.delayed"
	}
	if rc.Queue == "" {
		rc.Queue = "eventhub.notifications"
	}
	return rc, nil
}

func BuildNotifyConfig(cfg Source, log *zerolog.Logger) (NotifyConfig, error) {
	nc := NotifyConfig{
		SessionTTL:   cfg.GetDuration("auth.session_ttl"),
		ReminderLead: cfg.GetDuration("notify.reminder_lead"),
		MailEnabled:  cfg.GetBool("mail.enabled"),
		Mail: mailer.Config{
			Host:     cfg.GetString("mail.host"),
			Port:     cfg.GetInt("mail.port"),
			Username: cfg.GetString("mail.username"),
			Password: cfg.GetString("mail.password"),
			From:     cfg.GetString("mail.from"),
		},
	}

	tz := cfg.GetString("notify.timezone")
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return NotifyConfig{}, fmt.Errorf("invalid notify.timezone %q: %w", tz, err)
	}
	nc.Location = loc

	if nc.MailEnabled {
		if nc.Mail.Host == "" || nc.Mail.From == "" {
			return NotifyConfig{}, fmt.Errorf("mail.host and mail.from must be set when mail is enabled")
		}
		if nc.Mail.Port == 0 {
			nc.Mail.Port = 587
		}
	} else {
		log.Info().Msg("mail is disabled, notifications will be logged")
	}
	return nc, nil
}
