package presets

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/wricardo/mcp-training/rocketflight/flight/physics"
	"github.com/wricardo/mcp-training/rocketflight/flight/service"
	"gopkg.in/yaml.v3"
)

// DefaultName is the ID of the built-in preset
const DefaultName = "default"

var (
	ErrPresetNotFound = service.ErrPresetNotFound
	ErrInvalidPreset  = errors.New("invalid preset")
)

var extensions = []string{".yaml", ".yml", ".json"}

// Manager handles preset loading and caching
type Manager struct {
	presetDir     string
	defaultPreset *service.Preset
	presets       map[string]*service.Preset
	mu            sync.RWMutex
}

// NewManager creates a preset manager reading from presetDir. An empty
// presetDir serves only the built-in default.
func NewManager(presetDir string) (*Manager, error) {
	if presetDir != "" {
		info, err := os.Stat(presetDir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("preset directory does not exist: %s", presetDir)
			}
			return nil, fmt.Errorf("stat preset directory: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("preset path is not a directory: %s", presetDir)
		}
	}

	m := &Manager{
		presetDir: presetDir,
		presets:   make(map[string]*service.Preset),
	}

	m.defaultPreset = BuiltinDefault()
	if preset, err := m.LoadPreset(DefaultName); err == nil {
		m.defaultPreset = preset
	} else if !errors.Is(err, ErrPresetNotFound) {
		return nil, fmt.Errorf("failed to load default preset: %w", err)
	}

	return m, nil
}

// BuiltinDefault returns the preset matching a fresh store
func BuiltinDefault() *service.Preset {
	return &service.Preset{
		Name:        DefaultName,
		Description: "Rocket at rest on the pad with a full tank",
		RocketState: physics.DefaultRocketState(),
	}
}

// LoadPreset loads a preset by ID
func (m *Manager) LoadPreset(name string) (*service.Preset, error) {
	name = normalizeName(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrPresetNotFound)
	}

	m.mu.RLock()
	if preset, exists := m.presets[name]; exists {
		m.mu.RUnlock()
		return preset, nil
	}
	m.mu.RUnlock()

	path, err := m.findFile(name)
	if err != nil {
		if errors.Is(err, ErrPresetNotFound) && name == DefaultName && m.defaultPreset != nil {
			return m.defaultPreset, nil
		}
		return nil, err
	}

	preset, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.presets[name] = preset
	m.mu.Unlock()

	return preset, nil
}

// ListPresets returns information about every valid preset, the default first
func (m *Manager) ListPresets() ([]*service.PresetInfo, error) {
	def := m.GetDefault()
	infos := []*service.PresetInfo{{
		PresetID:    DefaultName,
		Name:        def.Name,
		Description: def.Description,
		RocketState: def.RocketState,
	}}

	if m.presetDir == "" {
		return infos, nil
	}

	entries, err := os.ReadDir(m.presetDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read preset directory: %w", err)
	}

	seen := map[string]bool{DefaultName: true}
	for _, entry := range entries {
		if entry.IsDir() || !hasPresetExtension(entry.Name()) {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if seen[name] {
			if name == DefaultName {
				infos[0].Filename = entry.Name()
			}
			continue
		}

		preset, err := m.LoadPreset(name)
		if err != nil {
			// Skip invalid presets
			continue
		}
		seen[name] = true

		infos = append(infos, &service.PresetInfo{
			Filename:    entry.Name(),
			PresetID:    name,
			Name:        preset.Name,
			Description: preset.Description,
			RocketState: preset.RocketState,
		})
	}

	sort.SliceStable(infos[1:], func(i, j int) bool {
		return infos[i+1].PresetID < infos[j+1].PresetID
	})

	return infos, nil
}

// GetDefault returns the default preset
func (m *Manager) GetDefault() *service.Preset {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultPreset
}

// RefreshCache drops cached presets so the next load reads from disk
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	m.presets = make(map[string]*service.Preset)
	m.mu.Unlock()
}

func (m *Manager) findFile(name string) (string, error) {
	if m.presetDir == "" {
		return "", ErrPresetNotFound
	}
	for _, ext := range extensions {
		path := filepath.Join(m.presetDir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", ErrPresetNotFound
}

// LoadFile reads and validates a single preset file
func LoadFile(path string) (*service.Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrPresetNotFound
		}
		return nil, fmt.Errorf("failed to read preset file: %w", err)
	}

	var preset service.Preset
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &preset)
	default:
		err = yaml.Unmarshal(data, &preset)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse preset %s: %w", filepath.Base(path), err)
	}

	if err := Validate(&preset); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	return &preset, nil
}

func normalizeName(name string) string {
	name = strings.TrimSpace(name)
	for _, ext := range extensions {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}

func hasPresetExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}
