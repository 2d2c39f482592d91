package settings

import (
	"gopkg.in/ini.v1"

	"github.com/YuminosukeSato/simplify/pkg/errors"
)

// ParseINI reads INI text. Keys outside any section are placed in
// [general]. Key names keep their case.
func ParseINI(data []byte) (*Settings, error) {
	f, err := ini.LoadSources(ini.LoadOptions{
		SpaceBeforeInlineComment: true,
		AllowShadows:             false,
	}, data)
	if err != nil {
		return nil, errors.WrapConfigurationError(err, "", "", "invalid INI")
	}

	s := New()
	for _, sec := range f.Sections() {
		name := sec.Name()
		if name == ini.DefaultSection {
			if len(sec.Keys()) == 0 {
				continue
			}
			name = General
		}
		dst := s.Add(name)
		for _, key := range sec.Keys() {
			dst.Set(key.Name(), key.Value())
		}
	}
	return s, nil
}
