//go:build !windows

package input

type stubDriver struct{}

func newPlatformDriver() Driver { return stubDriver{} }

func (stubDriver) SendSelectAll() error { return ErrUnavailable }
func (stubDriver) SendCopy() error      { return ErrUnavailable }
func (stubDriver) SendPaste() error     { return ErrUnavailable }
