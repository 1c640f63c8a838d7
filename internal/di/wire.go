//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/sandeepkv93/alumni-portal-client/internal/app"
)

func InitializeApp() (*app.App, error) {
	panic(wire.Build(
		ConfigSet,
		ObservabilitySet,
		StorageSet,
		SessionSet,
		HTTPSet,
		ServiceSet,
		AppSet,
	))
}
