// Package systemd integrates the daemon with systemd: readiness
// notification, a unit file template and unit status over D-Bus.
package systemd

import "github.com/coreos/go-systemd/v22/daemon"

// Ready tells systemd (Type=notify) that startup finished. It reports false
// when not running under systemd.
func Ready() (bool, error) { return daemon.SdNotify(false, daemon.SdNotifyReady) }

// Stopping tells systemd that shutdown began.
func Stopping() (bool, error) { return daemon.SdNotify(false, daemon.SdNotifyStopping) }

// Reloading is sent around a config reload; Ready must follow.
func Reloading() (bool, error) { return daemon.SdNotify(false, daemon.SdNotifyReloading) }

// StatusLine sets the free-form status shown by systemctl status.
func StatusLine(msg string) (bool, error) { return daemon.SdNotify(false, "STATUS="+msg) }
