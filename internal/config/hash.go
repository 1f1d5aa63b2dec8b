package config

import (
	"crypto/sha256"
	"encoding/hex"

	"sigs.k8s.io/yaml"
)

// LaunchHash fingerprints everything that determines how a node of this
// type is created and set up. Nodes whose launch-hash tag differs from the
// current value are outdated and get replaced.
func (nt NodeTypeConfig) LaunchHash() string {
	// sigs.k8s.io/yaml goes through JSON, so map keys come out sorted.
	data, err := yaml.Marshal(struct {
		NodeConfig    map[string]any `json:"node_config"`
		SetupCommands []string       `json:"setup_commands"`
		StartCommands []string       `json:"start_commands"`
	}{nt.NodeConfig, nt.SetupCommands, nt.StartCommands})
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:12]
}
