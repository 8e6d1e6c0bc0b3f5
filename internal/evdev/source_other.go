//go:build !linux

package evdev

import (
	"context"
	"errors"
	"log/slog"

	"stickbridge/internal/mapping"
	"stickbridge/internal/poll"
)

// ErrUnsupported is returned on platforms without the Linux input interface.
var ErrUnsupported = errors.New("evdev input is only supported on linux")

// Source is unavailable on this platform.
type Source struct{}

func Open(string, *slog.Logger) (*Source, error) { return nil, ErrUnsupported }

func (*Source) Names() []string { return nil }

func (*Source) Acquire(string, int) (poll.Device, error) { return nil, ErrUnsupported }

func (*Source) Inject(string, mapping.Sample) error { return ErrUnsupported }

func (*Source) Run(context.Context) error { return ErrUnsupported }

func (*Source) Watch(context.Context) error { return ErrUnsupported }

func (*Source) Close() error { return nil }
