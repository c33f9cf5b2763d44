package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed networks.yaml
var defaultNetworksYAML []byte

// NetworksFile is the network, compiler and verification settings file.
type NetworksFile struct {
	Solidity       string              `yaml:"solidity"`
	DefaultNetwork string              `yaml:"default_network"`
	Networks       map[string]*Network `yaml:"networks"`
}

// Network describes one deployment target.
type Network struct {
	Name     string   `yaml:"-"`
	ChainID  int64    `yaml:"chain_id"`
	Currency string   `yaml:"currency"`
	URL      string   `yaml:"url"`
	Contract string   `yaml:"contract"`
	Subgraph string   `yaml:"subgraph"`
	Explorer Explorer `yaml:"explorer"`
}

// Explorer names the block explorer used for contract-source verification
// and the environment variable holding its API key.
type Explorer struct {
	Name      string `yaml:"name"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// APIKey reads the explorer API key from the environment.
func (e Explorer) APIKey() string {
	if e.APIKeyEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(e.APIKeyEnv))
}

// LoadNetworksFromPath loads the networks file at path.
func LoadNetworksFromPath(path string) (*NetworksFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read networks file: %w", err)
	}
	return ParseNetworks(data)
}

// LoadNetworksOrDefault loads path, or the built-in networks when path is
// empty or missing.
func LoadNetworksOrDefault(path string) (*NetworksFile, error) {
	if path != "" {
		nf, err := LoadNetworksFromPath(path)
		if err == nil {
			return nf, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return DefaultNetworks()
}

// DefaultNetworks returns the built-in networks.
func DefaultNetworks() (*NetworksFile, error) {
	return ParseNetworks(defaultNetworksYAML)
}

// ParseNetworks decodes and validates a networks file.
func ParseNetworks(data []byte) (*NetworksFile, error) {
	var nf NetworksFile
	if err := yaml.Unmarshal(data, &nf); err != nil {
		return nil, fmt.Errorf("failed to parse networks file: %w", err)
	}

	if len(nf.Networks) == 0 {
		return nil, fmt.Errorf("networks file declares no networks")
	}
	for name, n := range nf.Networks {
		if n == nil {
			return nil, fmt.Errorf("network %s: empty definition", name)
		}
		if n.ChainID <= 0 {
			return nil, fmt.Errorf("network %s: chain_id is required", name)
		}
		n.Name = name
	}
	if nf.DefaultNetwork != "" {
		if _, ok := nf.Networks[nf.DefaultNetwork]; !ok {
			return nil, fmt.Errorf("default_network %s is not declared", nf.DefaultNetwork)
		}
	}

	return &nf, nil
}

// Lookup returns the named network, or the default network for "".
func (nf *NetworksFile) Lookup(name string) (*Network, error) {
	if name == "" {
		name = nf.DefaultNetwork
	}
	n, ok := nf.Networks[name]
	if !ok {
		return nil, fmt.Errorf("unknown network %q (known: %s)", name, strings.Join(nf.Names(), ", "))
	}
	cp := *n
	return &cp, nil
}

// Names returns the declared network names in sorted order.
func (nf *NetworksFile) Names() []string {
	names := make([]string, 0, len(nf.Networks))
	for name := range nf.Networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
