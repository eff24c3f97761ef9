package print

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// ConsoleDriver logs payloads instead of driving hardware. Used on
// terminals without a physical printer attached.
type ConsoleDriver struct{}

// Print implements Driver.
func (ConsoleDriver) Print(_ context.Context, payload string) error {
	slog.Info("print job payload", "payload", payload)
	return nil
}

// DeviceDriver writes raw payload bytes to a printer device file, typically
// /dev/usb/lp0 for an ESC/POS receipt printer.
type DeviceDriver struct {
	Path string
}

// Print implements Driver. The device is opened per job so an unplugged
// printer fails the attempt instead of wedging a long-lived handle.
func (d DeviceDriver) Print(_ context.Context, payload string) error {
	f, err := os.OpenFile(d.Path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open printer %s: %w", d.Path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(payload); err != nil {
		return fmt.Errorf("write to printer %s: %w", d.Path, err)
	}
	return nil
}
