// Package commands implements the planctl subcommands. Every command opens the
// configured kv backend directly, so planctl works against the same store as
// the server without going through the HTTP API.
package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/benvon/smart-trips/internal/config"
	"github.com/benvon/smart-trips/internal/database"
	"github.com/benvon/smart-trips/internal/kvstore"
	"github.com/benvon/smart-trips/internal/logger"
	"github.com/benvon/smart-trips/internal/queue"
	"github.com/benvon/smart-trips/internal/services/plans"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Options are the persistent flags shared by every subcommand
type Options struct {
	KVURL       string
	Timezone    string
	RabbitMQURL string
	Verbose     bool
}

// NewRootCmd builds the planctl command tree
func NewRootCmd() *cobra.Command {
	opts := &Options{}
	rootCmd := &cobra.Command{
		Use:           "planctl",
		Short:         "Administration tool for the Smart Trips plan store",
		Long:          "Inspect, import and export plans and manage runtime configuration stored in the kv backend.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.KVURL, "kv-url", "", "KV backend URL (defaults to KV_BACKEND_URL)")
	rootCmd.PersistentFlags().StringVar(&opts.Timezone, "timezone", "", "Plan timezone (defaults to PLAN_TIMEZONE)")
	rootCmd.PersistentFlags().StringVar(&opts.RabbitMQURL, "rabbitmq-url", "", "Publish change events here so running servers drop their caches (defaults to RABBITMQ_URL)")
	rootCmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Enable debug logging on stderr")

	rootCmd.AddCommand(NewPlansCmd(opts))
	rootCmd.AddCommand(NewKVCmd(opts))
	rootCmd.AddCommand(NewCorsCmd(opts))
	rootCmd.AddCommand(NewRatelimitCmd(opts))
	return rootCmd
}

// resolve fills unset options from the environment the same way the server
// loads its configuration
func (o *Options) resolve() error {
	if o.KVURL != "" && o.Timezone != "" {
		if o.RabbitMQURL == "" {
			o.RabbitMQURL = os.Getenv("RABBITMQ_URL")
		}
		return nil
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if o.KVURL == "" {
		o.KVURL = cfg.KVBackendURL
	}
	if o.Timezone == "" {
		o.Timezone = cfg.PlanTimezone
	}
	if o.RabbitMQURL == "" {
		o.RabbitMQURL = cfg.RabbitMQURL
	}
	return nil
}

// session is an open store plus whatever the command built on top of it
type session struct {
	logger *zap.Logger
	store  *kvstore.Store
	bus    queue.EventBus
}

func (o *Options) open(ctx context.Context) (*session, error) {
	if err := o.resolve(); err != nil {
		return nil, err
	}
	zapLogger, err := logger.NewCLILogger(o.Verbose)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	backend, err := kvstore.Open(ctx, o.KVURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open kv backend: %w", err)
	}
	// planctl is short-lived, so the read cache stays small
	store, err := kvstore.New(backend, kvstore.WithLogger(zapLogger), kvstore.WithCacheSize(64))
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("failed to create kv store: %w", err)
	}
	zapLogger.Debug("kv_store_opened", zap.String("backend", kvstore.Scheme(o.KVURL)))
	return &session{logger: zapLogger, store: store}, nil
}

// service builds the plan service over the session store. When a broker is
// configured every mutation is announced to running servers.
func (s *session) service(o *Options) *plans.Service {
	location, ok := plans.LoadLocation(o.Timezone)
	if !ok {
		s.logger.Warn("unknown_plan_timezone_using_fallback",
			zap.String("plan_timezone", o.Timezone),
			zap.String("fallback", location.String()),
		)
	}

	planRepo := database.NewPlanRepository(s.store)
	planRepo.SetLogger(s.logger)
	svc := plans.NewService(plans.Repositories{
		Plans:       planRepo,
		Drafts:      database.NewDraftRepository(s.store),
		Preferences: database.NewPreferencesRepository(s.store),
		SyncState:   database.NewSyncStateRepository(s.store),
	}, plans.WithLogger(s.logger), plans.WithLocation(location))

	if o.RabbitMQURL == "" {
		return svc
	}
	bus, err := queue.NewRabbitMQBus(o.RabbitMQURL)
	if err != nil {
		s.logger.Warn("change_events_disabled", zap.Error(err))
		return svc
	}
	s.bus = bus
	source := "planctl-" + uuid.NewString()
	svc.OnChange(func(ctx context.Context, change plans.Change) {
		publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := bus.Publish(publishCtx, queue.NewChangeEvent(source, string(change.Op), change.PlanIDs)); err != nil {
			s.logger.Warn("failed_to_publish_change_event", zap.String("op", string(change.Op)), zap.Error(err))
		}
	})
	return svc
}

func (s *session) Close() {
	if s.bus != nil {
		if err := s.bus.Close(); err != nil {
			s.logger.Warn("failed_to_close_event_bus", zap.Error(err))
		}
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn("failed_to_close_kv_store", zap.Error(err))
	}
	_ = logger.Sync(s.logger)
}
