// pkg/middleware/logger/module.go
package logger

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/nanobridge/nanobridge/pkg/config"
)

func ProvideLoggerMiddleware() *Middleware { return &Middleware{} }

func ProvideLogger(cfg config.Config) *zap.Logger { return NewLog(cfg.LogFile) }

var Module = fx.Options(
	fx.Provide(ProvideLoggerMiddleware),
	fx.Provide(ProvideLogger),
)
