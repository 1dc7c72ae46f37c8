// cmd/nanobridge/main.go
package main

import (
	"go.uber.org/fx"

	"github.com/nanobridge/nanobridge/pkg/bridgefx"
)

func main() {
	fx.New(bridgefx.Module).Run()
}
