package handlers

import (
	"fmt"
	"io"

	"github.com/imamik/clusterscaler/internal/catalog"
)

// Validate handles the validate command.
//
// It loads the cluster document and builds the node type catalog without
// contacting the provider.
func Validate(configPath string, w io.Writer) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	cat, err := catalog.New(cfg)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Configuration valid: cluster %s, provider %s\n", cfg.ClusterName, cfg.Provider.Type)
	for _, spec := range cat.All() {
		role := "worker"
		if spec.IsHead {
			role = "head"
		}
		fmt.Fprintf(w, "  %-16s %-6s min=%d max=%d resources=%s hash=%s\n",
			spec.Name, role, spec.MinWorkers, spec.MaxWorkers, spec.Resources.String(), shortHash(spec.LaunchHash))
	}
	return nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
