package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/codecall/backend/remote"
)

// Servers is the layout of a servers file:
//
//	servers:
//	  - name: github
//	    command: github-mcp
//	    env: {GITHUB_TOKEN: "..."}
//	  - name: search
//	    url: https://search.example.com/mcp
type Servers struct {
	Servers []remote.Config `yaml:"servers"`
}

// LoadServers reads and validates a servers file.
func LoadServers(path string) ([]remote.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read servers file: %w", err)
	}
	return ParseServers(data)
}

// ParseServers decodes a servers document. Unknown fields and duplicate
// names are rejected.
func ParseServers(data []byte) ([]remote.Config, error) {
	var doc Servers
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse servers file: %w", err)
	}

	seen := make(map[string]bool, len(doc.Servers))
	for _, s := range doc.Servers {
		if s.Name == "" {
			return nil, fmt.Errorf("servers file: entry without a name")
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("servers file: duplicate name %q", s.Name)
		}
		seen[s.Name] = true
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	return doc.Servers, nil
}
