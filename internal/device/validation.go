package device

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	maxNameLength     = 100
	maxSlugLength     = 50
	maxHostnameLength = 253
)

var hostnameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*\.?$`)

// ValidateDevice checks every field and reports all problems at once.
func ValidateDevice(d *Device) error {
	if d == nil {
		return fmt.Errorf("%w: device is nil", ErrInvalidDevice)
	}

	var errs []error
	if d.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if err := ValidateName(d.Name); err != nil {
		errs = append(errs, err)
	}
	if err := ValidateAddress(d.Address); err != nil {
		errs = append(errs, err)
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidPort, d.Port))
	}
	if d.Polling < MinPolling {
		errs = append(errs, fmt.Errorf("%w: %ds (minimum %ds)", ErrInvalidPolling, d.Polling, MinPolling))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidDevice, errors.Join(errs...))
	}
	return nil
}

// ValidateName checks the display name length. Empty names are allowed.
func ValidateName(name string) error {
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateAddress accepts an IP literal or a DNS hostname without a port.
func ValidateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidAddress)
	}
	if net.ParseIP(address) != nil {
		return nil
	}
	if len(address) > maxHostnameLength || !hostnameRegex.MatchString(address) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return nil
}

// GenerateSlug converts a display name to a URL-safe identifier.
// "Living Room Node 2" -> "living-room-node-2"
func GenerateSlug(name string) string {
	slug := strings.ToLower(name)
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.ReplaceAll(slug, "_", "-")

	var result strings.Builder
	for _, r := range slug {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			result.WriteRune(r)
		}
	}
	slug = result.String()

	slug = strings.Trim(slug, "-")
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}

	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	return slug
}

// GenerateID derives an ID from the name, or a UUID when the name has no
// usable characters.
func GenerateID(name string) string {
	if slug := GenerateSlug(name); slug != "" {
		return slug
	}
	return uuid.New().String()
}
