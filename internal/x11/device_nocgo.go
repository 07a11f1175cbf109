//go:build !cgo

package x11

import (
	"context"
	"errors"
)

var errNoCgo = errors.New("x11 input needs cgo")

type Device struct{}

func NewDevice(int) (*Device, error) { return nil, errNoCgo }

func (*Device) NotifyKeysym(context.Context, int32, bool) error               { return errNoCgo }
func (*Device) NotifyPointerAbsolute(context.Context, float64, float64) error { return errNoCgo }
func (*Device) NotifyButton(context.Context, int32, bool) error               { return errNoCgo }
func (*Device) NotifyScroll(context.Context, float64, float64) error          { return errNoCgo }
