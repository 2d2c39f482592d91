// Package settings loads the two-level configuration that drives a
// simplify run. Values are typed on load: comma lists become lists, two
// numbers become a search Range, and scalars become int, float, bool, none
// or string.
package settings

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/YuminosukeSato/simplify/pkg/errors"
	"github.com/YuminosukeSato/simplify/pkg/log"
)

// General is the section holding run-wide options.
const General = "general"

// Settings is an ordered collection of sections.
type Settings struct {
	path     string
	order    []string
	sections map[string]*Section
}

// New creates empty settings.
func New() *Settings {
	return &Settings{sections: make(map[string]*Section)}
}

// Load reads a settings file. ".hcl" files use the HCL loader, everything
// else is read as INI.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapConfigurationError(err, "", "", "cannot read "+path)
	}

	var s *Settings
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		s, err = ParseHCL(data, path)
	default:
		s, err = ParseINI(data)
	}
	if err != nil {
		return nil, err
	}
	s.path = path

	log.GetLoggerWithName("settings").Debug("settings loaded",
		log.SettingsPathKey, path,
		"sections", len(s.order),
	)
	return s, nil
}

// Path returns the file the settings were loaded from, if any.
func (s *Settings) Path() string { return s.path }

// Sections returns the section names in file order.
func (s *Settings) Sections() []string { return append([]string(nil), s.order...) }

// Has reports whether a section exists.
func (s *Settings) Has(name string) bool {
	_, ok := s.sections[name]
	return ok
}

// Section returns the named section. A missing section is returned empty
// so that callers can read defaults from it.
func (s *Settings) Section(name string) *Section {
	if sec, ok := s.sections[name]; ok {
		return sec
	}
	return NewSection(name)
}

// Add returns the named section, creating it if needed.
func (s *Settings) Add(name string) *Section {
	if sec, ok := s.sections[name]; ok {
		return sec
	}
	sec := NewSection(name)
	s.sections[name] = sec
	s.order = append(s.order, name)
	return sec
}

// Set stores raw under section.key.
func (s *Settings) Set(section, key, raw string) {
	s.Add(section).Set(key, raw)
}

// Delete removes a whole section when name matches one, otherwise the key
// name from every section holding it.
func (s *Settings) Delete(name string) error {
	if _, ok := s.sections[name]; ok {
		delete(s.sections, name)
		for i, n := range s.order {
			if n == name {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
		return nil
	}
	found := false
	for _, n := range s.order {
		if s.sections[n].Delete(name) {
			found = true
		}
	}
	if !found {
		return errors.NewConfigurationError("", name, "not found in settings")
	}
	return nil
}

// Update merges other into s; keys in other win.
func (s *Settings) Update(other *Settings) {
	for _, name := range other.order {
		dst := s.Add(name)
		src := other.sections[name]
		for _, k := range src.keys {
			dst.put(k, src.values[k])
		}
	}
}

// Techniques returns the technique names listed under section.key. A
// missing or empty entry yields ["none"].
func (s *Settings) Techniques(section, key string) []string {
	names := s.Section(section).Strings(key)
	if len(names) == 0 {
		return []string{"none"}
	}
	return names
}
