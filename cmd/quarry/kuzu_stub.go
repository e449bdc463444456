//go:build !cgo

package main

import (
	"context"
	"errors"

	"github.com/quarry-dev/quarry/internal/mcptools"
)

func saveKuzu(context.Context, *mcptools.Service, string) error {
	return errors.New("kuzu persistence requires a CGO-enabled build")
}
