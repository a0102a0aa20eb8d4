// Package systemd reports daemon state to systemd through sd_notify. Every
// call is a no-op when the process was not started by systemd.
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Ready reports startup complete. sent is false outside systemd.
func Ready() (sent bool, err error) {
	return daemon.SdNotify(false, daemon.SdNotifyReady)
}

// Stopping reports that shutdown began.
func Stopping() (sent bool, err error) {
	return daemon.SdNotify(false, daemon.SdNotifyStopping)
}

// Status publishes a one-line status shown by systemctl status.
func Status(msg string) (sent bool, err error) {
	return daemon.SdNotify(false, "STATUS="+msg)
}

// Watchdog pings the systemd watchdog at half its interval until ctx is
// done. healthy gates each ping; a nil healthy always pings. It returns
// immediately when the watchdog is not enabled for this unit.
func Watchdog(ctx context.Context, healthy func() bool) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return err
	}
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if healthy == nil || healthy() {
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
		}
	}
}
