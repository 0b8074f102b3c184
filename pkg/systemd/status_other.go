//go:build !linux

package systemd

import (
	"context"
	"errors"
)

var ErrUnsupported = errors.New("systemd: unsupported OS (linux only)")

func UnitStatus(_ context.Context, _ string, _ bool) (Status, error) {
	return Status{}, ErrUnsupported
}
