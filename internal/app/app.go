package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sandeepkv93/alumni-portal-client/internal/authstate"
	"github.com/sandeepkv93/alumni-portal-client/internal/config"
	"github.com/sandeepkv93/alumni-portal-client/internal/http/client"
	"github.com/sandeepkv93/alumni-portal-client/internal/observability"
	"github.com/sandeepkv93/alumni-portal-client/internal/repository"
	"github.com/sandeepkv93/alumni-portal-client/internal/service"
	"github.com/sandeepkv93/alumni-portal-client/internal/session"
)

// App is built once per process and passed by reference to every front end.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Observability *observability.Runtime
	Storage       repository.KeyValueRepository
	Tokens        *session.TokenStore
	Client        *client.Client
	Auth          *service.AuthService
	Session       *authstate.Provider

	detach func()
}

func New(
	cfg *config.Config,
	logger *slog.Logger,
	runtime *observability.Runtime,
	storage repository.KeyValueRepository,
	tokens *session.TokenStore,
	httpClient *client.Client,
	auth *service.AuthService,
	provider *authstate.Provider,
) *App {
	a := &App{
		Config:        cfg,
		Logger:        logger,
		Observability: runtime,
		Storage:       storage,
		Tokens:        tokens,
		Client:        httpClient,
		Auth:          auth,
		Session:       provider,
		detach:        func() {},
	}
	if httpClient != nil && provider != nil {
		a.detach = httpClient.OnSessionExpired(provider.HandleSessionExpired)
	}
	return a
}

// Start settles the session state from durable storage.
func (a *App) Start(ctx context.Context) {
	snap := a.Session.Init(ctx)
	a.Logger.DebugContext(ctx, "session restored", "state", snap.State)
}

// Close tears down in reverse build order. It is safe to call more than once.
func (a *App) Close(ctx context.Context) error {
	a.detach()
	a.detach = func() {}

	var errs []error
	if a.Session != nil {
		if err := a.Session.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			errs = append(errs, err)
		}
		a.Storage = nil
	}
	if err := a.Observability.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	a.Observability = nil
	return errors.Join(errs...)
}
