package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
)

// ColorConfig holds output colors as "r,g,b" strings, one per workflow stage plus log levels.
// an empty field means the terminal's basic color for that stage.
type ColorConfig struct {
	Scanning   string
	Review     string
	Cleanup    string
	Escalation string
	Report     string
	Warn       string
	Error      string
	Timestamp  string
	Info       string
}

type colorField struct {
	key string
	val *string
}

// fields binds each color_* key to its field.
func (c *ColorConfig) fields() []colorField {
	return []colorField{
		{"color_scanning", &c.Scanning},
		{"color_review", &c.Review},
		{"color_cleanup", &c.Cleanup},
		{"color_escalation", &c.Escalation},
		{"color_report", &c.Report},
		{"color_warn", &c.Warn},
		{"color_error", &c.Error},
		{"color_timestamp", &c.Timestamp},
		{"color_info", &c.Info},
	}
}

// parseColors reads the color_* keys of section. values are "#rrggbb", blank keys are left unset.
func parseColors(section *ini.Section) (ColorConfig, error) {
	var colors ColorConfig
	for _, f := range colors.fields() {
		key, err := section.GetKey(f.key)
		if err != nil {
			continue
		}
		v := strings.TrimSpace(key.String())
		if v == "" {
			continue
		}
		rgb, err := hexToRGB(v)
		if err != nil {
			return ColorConfig{}, fmt.Errorf("invalid %s: %w", f.key, err)
		}
		*f.val = rgb
	}
	return colors, nil
}

// hexToRGB turns "#rrggbb" into the "r,g,b" form the progress logger takes.
func hexToRGB(s string) (string, error) {
	if !strings.HasPrefix(s, "#") {
		return "", errors.New("hex color must start with #")
	}
	if len(s) != 7 {
		return "", errors.New("hex color must be 7 characters (e.g., #ff0000)")
	}
	b, err := hex.DecodeString(s[1:])
	if err != nil {
		return "", fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return fmt.Sprintf("%d,%d,%d", b[0], b[1], b[2]), nil
}

// mergeFrom copies the colors set in src over dst.
func (c *ColorConfig) mergeFrom(src *ColorConfig) {
	dst, from := c.fields(), src.fields()
	for i := range dst {
		if *from[i].val != "" {
			*dst[i].val = *from[i].val
		}
	}
}
