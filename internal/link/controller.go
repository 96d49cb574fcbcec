package link

import "context"

// Controller is the radio driver boundary. Blocking calls honour ctx.
type Controller interface {
	Capabilities() Capabilities
	State() State
	IsStarted() (bool, error)
	Configure(cfg Config) error
	// Start may block until the hardware is ready.
	Start(ctx context.Context) error
	// Connect blocks until association succeeds or fails.
	Connect(ctx context.Context) error
	// WaitForEvent blocks until the controller reports ev.
	WaitForEvent(ctx context.Context, ev ControllerEvent) error
}
