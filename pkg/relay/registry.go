package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type registryFile struct {
	Relays []Relay `json:"relays" yaml:"relays"`
}

// Load reads an ordered relay chain from a YAML or JSON file. List order
// is the failover order.
func Load(path string) ([]Relay, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("relays file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open relays file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read relays file: %w", err)
	}

	reg, err := parseRegistry(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(reg.Relays) == 0 {
		return nil, errors.New("relays file contains no relay entries")
	}

	seen := make(map[string]struct{}, len(reg.Relays))
	out := make([]Relay, 0, len(reg.Relays))
	for i := range reg.Relays {
		r := sanitize(reg.Relays[i])
		if err := validate(r); err != nil {
			return nil, fmt.Errorf("relay[%d]: %w", i, err)
		}
		if _, exists := seen[r.ID]; exists {
			return nil, fmt.Errorf("duplicate relay id %q", r.ID)
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}

	return out, nil
}

// LoadOrDefaults loads the relay chain from path, falling back to the
// built-in chain when path is empty or the file does not exist.
func LoadOrDefaults(path string) ([]Relay, error) {
	if strings.TrimSpace(path) == "" {
		return Defaults(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Defaults(), nil
	}
	return Load(path)
}

func parseRegistry(data []byte, ext string) (registryFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var reg registryFile
		if err := d.fn(data, &reg); err == nil {
			return reg, nil
		}
	}

	return registryFile{}, errors.New("relays file format not recognized (expected YAML or JSON)")
}
