package keyprovider

import (
	"context"
	"log/slog"

	"github.com/ruteri/device-key-registration/interfaces"
)

// SelectProvider returns a hardware-backed provider when hardware is
// available and a presence checker is configured, otherwise a software
// fallback over software.
func SelectProvider(ctx context.Context, hardware interfaces.Keystore, software *SoftwareKeystore, presence interfaces.PresenceChecker, cfg Config, log *slog.Logger) (*Provider, error) {
	if hardware != nil && presence != nil && hardware.Available(ctx) {
		return NewHardwareProvider(hardware, presence, cfg, log)
	}

	if hardware != nil {
		log.Warn("Secure hardware unavailable, using software key provider")
	}
	if software == nil {
		var err error
		software, err = NewSoftwareKeystore(nil, nil, log)
		if err != nil {
			return nil, err
		}
	}
	return NewSoftwareProvider(software, presence, cfg, log), nil
}
