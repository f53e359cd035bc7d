package load

import (
	"context"
	"sync/atomic"
)

// CaptureUnit runs an inner unit while a capture helper process is kept
// alive next to it. The helper is only reached through this unit.
type CaptureUnit struct {
	Inner  Unit
	Helper *Helper

	unhealthy atomic.Int64
}

// NewCaptureUnit wraps inner with a helper.
func NewCaptureUnit(inner Unit, helper *Helper) *CaptureUnit {
	return &CaptureUnit{Inner: inner, Helper: helper}
}

// Start launches the helper.
func (u *CaptureUnit) Start(ctx context.Context) error {
	return u.Helper.Start(ctx)
}

// Run runs the inner unit. A dead helper does not stop the load; it is
// counted and reported through Unhealthy.
func (u *CaptureUnit) Run() int {
	if u.Helper.Healthy() != nil {
		u.unhealthy.Add(1)
	}

	return u.Inner.Run()
}

// Unhealthy returns how many units ran while the helper was down.
func (u *CaptureUnit) Unhealthy() int64 {
	return u.unhealthy.Load()
}

// Close stops the helper.
func (u *CaptureUnit) Close() error {
	return u.Helper.Stop()
}
