package prefs

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

const themeKey = "theme"

func ParseTheme(value string) (Theme, error) {
	switch Theme(strings.ToLower(strings.TrimSpace(value))) {
	case ThemeLight:
		return ThemeLight, nil
	case ThemeDark:
		return ThemeDark, nil
	default:
		return "", fmt.Errorf("unknown theme %q (expected light or dark)", value)
	}
}

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

type Preferences struct {
	store  Store
	logger *zap.Logger
}

func New(store Store, logger *zap.Logger) *Preferences {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Preferences{store: store, logger: logger}
}

// Theme never fails: unreadable or unknown stored values fall back to light.
func (p *Preferences) Theme() Theme {
	value, ok, err := p.store.Get(themeKey)
	if err != nil {
		p.logger.Warn("failed to read theme preference; using default", zap.Error(err))
		return ThemeLight
	}
	if !ok {
		return ThemeLight
	}

	theme, err := ParseTheme(value)
	if err != nil {
		p.logger.Debug("ignoring invalid stored theme", zap.String("value", value))
		return ThemeLight
	}
	return theme
}

func (p *Preferences) SetTheme(theme Theme) error {
	if _, err := ParseTheme(string(theme)); err != nil {
		return err
	}
	if err := p.store.Set(themeKey, string(theme)); err != nil {
		return fmt.Errorf("save theme preference: %w", err)
	}
	p.logger.Debug("theme preference saved", zap.String("theme", string(theme)))
	return nil
}
