//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"
)

// BuildApp wires the server components using Google Wire.
func BuildApp(ctx context.Context) (*App, func(), error) {
	wire.Build(
		provideConfig,
		provideLogger,
		provideDayKeys,
		provideMetrics,
		provideHub,
		provideStorage,
		provideCache,
		provideService,
		providePruner,
		provideHandler,
		provideServer,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}
