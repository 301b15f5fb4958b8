/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package config holds the per-language-server configuration the editor
// sends with start_lang_server, merged over file-level defaults.
package config

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// DefaultIndentation is used when neither the editor payload nor the config
// file sets one.
const DefaultIndentation = 4

// LsConfig describes how to run one language server and how its files are
// indented.
type LsConfig struct {
	Command              []string `mapstructure:"command" yaml:"command"`
	RootMarkers          []string `mapstructure:"root_markers" yaml:"root_markers"`
	Indentation          uint64   `mapstructure:"indentation" yaml:"indentation"`
	IndentationWithSpace bool     `mapstructure:"indentation_with_space" yaml:"indentation_with_space"`
}

// Default returns the zero config with default indentation settings.
func Default() LsConfig {
	return LsConfig{Indentation: DefaultIndentation}
}

// LanguageDefaults reads file-level defaults for the given language from
// viper (the servers.<lang_id> tree of .config/lspc.yaml). The second
// return reports whether any were configured.
func LanguageDefaults(langID string) (LsConfig, bool) {
	cfg := Default()
	key := "servers." + langID
	if !viper.IsSet(key) {
		return cfg, false
	}
	if err := viper.UnmarshalKey(key, &cfg); err != nil {
		return Default(), false
	}
	if cfg.Indentation == 0 {
		cfg.Indentation = DefaultIndentation
	}
	return cfg, true
}

// FromPayload decodes an editor-supplied config map on top of base.
// Fields absent from the payload keep their base values.
func FromPayload(base LsConfig, payload map[string]any) (LsConfig, error) {
	cfg := base
	if payload == nil {
		return cfg, nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return cfg, fmt.Errorf("build config decoder: %w", err)
	}
	if err := decoder.Decode(payload); err != nil {
		return cfg, fmt.Errorf("decode server config: %w", err)
	}
	if cfg.Indentation == 0 {
		cfg.Indentation = DefaultIndentation
	}
	return cfg, nil
}

// Resolve merges file defaults for langID beneath the editor payload.
func Resolve(langID string, payload map[string]any) (LsConfig, error) {
	base, _ := LanguageDefaults(langID)
	cfg, err := FromPayload(base, payload)
	if err != nil {
		return cfg, err
	}
	if len(cfg.Command) == 0 {
		return cfg, fmt.Errorf("no command configured for language %q", langID)
	}
	return cfg, nil
}
