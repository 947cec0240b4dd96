// Package serverconfig loads and validates the YAML configuration for
// a follower process, grounded on raft-server/config.go, generalized
// from a 3-state voter config to a follower-node config: node
// identity, data directory, peer addresses, ingress queue sizing, and
// the metrics listen address.
package serverconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Node    NodeConfig    `yaml:"node"`
	Cluster ClusterConfig `yaml:"cluster"`
}

type NodeConfig struct {
	URI            string `yaml:"uri"`
	Address        string `yaml:"address"`
	DataDir        string `yaml:"data_dir"`
	CachedRequests int    `yaml:"cached_requests"`
	MetricsAddr    string `yaml:"metrics_addr"`
}

type ClusterConfig struct {
	Peers []PeerConfig `yaml:"peers"`
}

type PeerConfig struct {
	URI     string `yaml:"uri"`
	Address string `yaml:"address"`
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("serverconfig: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("serverconfig: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("serverconfig: invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Node.URI == "" {
		return fmt.Errorf("node.uri is required")
	}
	if c.Node.Address == "" {
		return fmt.Errorf("node.address is required")
	}
	if c.Node.DataDir == "" {
		return fmt.Errorf("node.data_dir is required")
	}
	if c.Node.CachedRequests <= 0 {
		c.Node.CachedRequests = 64
	}

	if len(c.Cluster.Peers) == 0 {
		return fmt.Errorf("cluster.peers must contain at least one peer")
	}

	found := false
	seen := make(map[string]bool, len(c.Cluster.Peers))
	for _, peer := range c.Cluster.Peers {
		if seen[peer.URI] {
			return fmt.Errorf("duplicate peer uri: %s", peer.URI)
		}
		seen[peer.URI] = true

		if peer.URI == c.Node.URI {
			found = true
			if peer.Address != c.Node.Address {
				return fmt.Errorf("node address mismatch: node.address=%s but peer address=%s",
					c.Node.Address, peer.Address)
			}
		}
	}
	if !found {
		return fmt.Errorf("node.uri=%s not found in cluster.peers", c.Node.URI)
	}

	return nil
}

// PeerURIs returns every peer's URI, including this node's own.
func (c *Config) PeerURIs() []string {
	uris := make([]string, len(c.Cluster.Peers))
	for i, p := range c.Cluster.Peers {
		uris[i] = p.URI
	}
	return uris
}
