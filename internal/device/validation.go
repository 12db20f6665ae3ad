package device

import (
	"fmt"
	"regexp"
	"strings"
)

// Validation constants.
const (
	maxNameLength = 100
	maxSlugLength = 50
	slugPattern   = `^[a-z0-9]+(?:[-_][a-z0-9]+)*$`
)

var slugRegex = regexp.MustCompile(slugPattern)

// Pre-computed validation sets for O(1) lookups.
var (
	validKinds          map[Kind]struct{}
	validComponentKinds map[ComponentKind]struct{}
)

func init() {
	validKinds = make(map[Kind]struct{}, len(AllKinds()))
	for _, k := range AllKinds() {
		validKinds[k] = struct{}{}
	}

	validComponentKinds = make(map[ComponentKind]struct{}, len(AllComponentKinds()))
	for _, k := range AllComponentKinds() {
		validComponentKinds[k] = struct{}{}
	}
}

// ValidateDescriptor checks a device descriptor before registration.
//
// Returns an error wrapping ErrInvalidDevice, ErrInvalidName or
// ErrInvalidSlug describing the first problem found.
func ValidateDescriptor(d Descriptor) error {
	if err := ValidateSlug(d.ID); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	if err := ValidateName(d.Name); err != nil {
		return err
	}
	if _, ok := validKinds[d.Kind]; !ok {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidDevice, d.Kind)
	}
	if strings.TrimSpace(d.Driver) == "" {
		return fmt.Errorf("%w: driver is required", ErrInvalidDevice)
	}
	if len(d.Components) == 0 {
		return fmt.Errorf("%w: device %s has no components", ErrInvalidDevice, d.ID)
	}

	seen := make(map[string]struct{}, len(d.Components))
	for _, c := range d.Components {
		if err := ValidateSlug(c.Name); err != nil {
			return fmt.Errorf("component %q: %w", c.Name, err)
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("%w: duplicate component %q", ErrInvalidDevice, c.Name)
		}
		seen[c.Name] = struct{}{}
		if _, ok := validComponentKinds[c.Kind]; !ok {
			return fmt.Errorf("%w: component %s has unknown kind %q", ErrInvalidDevice, c.Name, c.Kind)
		}
	}
	return nil
}

// ValidateName checks a display name.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if len(trimmed) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateSlug checks a device ID or component name. Slugs appear in URL
// paths and MQTT topics, so they are restricted to lowercase alphanumerics
// separated by single dashes or underscores.
func ValidateSlug(slug string) error {
	if slug == "" {
		return fmt.Errorf("%w: slug is required", ErrInvalidSlug)
	}
	if len(slug) > maxSlugLength {
		return fmt.Errorf("%w: slug exceeds %d characters", ErrInvalidSlug, maxSlugLength)
	}
	if !slugRegex.MatchString(slug) {
		return fmt.Errorf("%w: %q must match %s", ErrInvalidSlug, slug, slugPattern)
	}
	return nil
}
