// pkg/middleware/auth/module.go
package auth

import "go.uber.org/fx"

var Module = fx.Options(
	fx.Provide(ProvideAuthMiddleware),
)
