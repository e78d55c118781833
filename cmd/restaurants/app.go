package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/phrazzld/restaurant-reviews/internal/config"
	"github.com/phrazzld/restaurant-reviews/internal/domain"
	"github.com/phrazzld/restaurant-reviews/internal/events"
	"github.com/phrazzld/restaurant-reviews/internal/platform/keystore"
	"github.com/phrazzld/restaurant-reviews/internal/platform/oauth"
	"github.com/phrazzld/restaurant-reviews/internal/platform/yelp"
	"github.com/phrazzld/restaurant-reviews/internal/task"
)

// errNoCredentials is returned when there is no usable account and no client
// credentials to get one.
var errNoCredentials = errors.New("no authorized account: run authorize or set " +
	config.EnvName("yelp.client_id") + " and " + config.EnvName("yelp.client_secret"))

// app holds what every command needs once configuration is loaded.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	out        io.Writer
	httpClient *http.Client
	store      keystore.Store
	closeStore func() error
}

func newApp(cfg *config.Config, log *slog.Logger, out io.Writer) (*app, error) {
	store, closeStore, err := openStore(cfg.Store, log)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:        cfg,
		logger:     log,
		out:        out,
		httpClient: &http.Client{Timeout: cfg.Yelp.Timeout},
		store:      store,
		closeStore: closeStore,
	}, nil
}

func openStore(cfg config.StoreConfig, log *slog.Logger) (keystore.Store, func() error, error) {
	if cfg.Backend != "redis" {
		return keystore.NewMemoryStore(), func() error { return nil }, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})

	key := cfg.Key
	if key == "" {
		key = keystore.DefaultKey
	}
	store, err := keystore.NewRedisStore(client, key, []byte(cfg.Secret), log)
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	log.Debug("using redis credential store", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
	return store, client.Close, nil
}

func (a *app) close() {
	if err := a.closeStore(); err != nil {
		a.logger.Warn("failed to close credential store", "error", err)
	}
}

func (a *app) authorizer() *oauth.Authorizer {
	return oauth.NewAuthorizer(oauth.Config{
		ClientID:     a.cfg.Yelp.ClientID,
		ClientSecret: a.cfg.Yelp.ClientSecret,
		TokenURL:     a.cfg.Yelp.TokenURL,
	}, a.httpClient, a.logger)
}

// account returns the stored account if it is still authorized and
// otherwise runs the grant, provided client credentials are configured.
func (a *app) account(ctx context.Context) (domain.Account, error) {
	account, ok, err := keystore.LoadAuthorized(ctx, a.store)
	if err != nil {
		return domain.Account{}, fmt.Errorf("failed to load account: %w", err)
	}
	if ok {
		return *account, nil
	}

	if a.cfg.Yelp.ClientID == "" || a.cfg.Yelp.ClientSecret == "" {
		return domain.Account{}, errNoCredentials
	}

	a.logger.Info("no authorized account stored, authorizing")
	return a.authorizer().AuthorizeAndSave(ctx, a.store)
}

func (a *app) client(account domain.Account) *yelp.Client {
	return yelp.NewClientFromAccount(a.httpClient, account, a.logger,
		yelp.WithBaseURL(a.cfg.Yelp.BaseURL))
}

// newQueue creates a started queue that delivers completions on dispatcher.
// When trace is not nil every state transition is written to it.
func (a *app) newQueue(dispatcher task.Dispatcher, trace io.Writer) *task.Queue {
	opts := []task.QueueOption{task.WithDispatcher(dispatcher)}
	if trace != nil {
		emitter := events.NewInMemoryEventEmitter(a.logger)
		emitter.RegisterHandler(traceTransitions(trace))
		opts = append(opts, task.WithEventEmitter(emitter))
	}

	queue := task.NewQueue(task.QueueConfig{
		WorkerCount: a.cfg.Queue.WorkerCount,
		QueueSize:   a.cfg.Queue.QueueSize,
	}, a.logger, opts...)
	queue.Start()
	return queue
}

func traceTransitions(w io.Writer) events.HandlerFunc {
	var mu sync.Mutex
	return func(_ context.Context, event *events.TransitionEvent) error {
		mu.Lock()
		defer mu.Unlock()
		_, err := fmt.Fprintf(w, "%s %s\n", event.At.Format("15:04:05.000"), event)
		return err
	}
}
