package config

// Defaults applied before the document is decoded, so any key present in
// the document overrides them.
const (
	DefaultUpscalingSpeed     = 1.0
	DefaultIdleTimeoutMinutes = 5

	DefaultUpdateIntervalSeconds   = 5
	DefaultMaxLaunchBatch          = 5
	DefaultMaxConcurrentLaunches   = 10
	DefaultMaxFailures             = 5
	DefaultDemandFreshnessSeconds  = 30
	DefaultReachableTimeoutSeconds = 600
	DefaultCommandTimeoutSeconds   = 1800
	DefaultTerminationRetries      = 3
)

// ProviderTypes lists the provider backends that can be selected.
var ProviderTypes = map[string]bool{
	"hcloud":     true,
	"kubernetes": true,
	"docker":     true,
	"openstack":  true,
	"static":     true,
	"fake":       true,
}

// Default returns a Config with every default set.
func Default() *Config {
	return &Config{
		UpscalingSpeed:     DefaultUpscalingSpeed,
		IdleTimeoutMinutes: DefaultIdleTimeoutMinutes,
		TieBreak:           TieBreakClosestToTarget,
		Operations:         DefaultOperations(),
	}
}

// DefaultOperations returns the default operational constants.
func DefaultOperations() Operations {
	return Operations{
		UpdateIntervalSeconds:   DefaultUpdateIntervalSeconds,
		MaxLaunchBatch:          DefaultMaxLaunchBatch,
		MaxConcurrentLaunches:   DefaultMaxConcurrentLaunches,
		MaxFailures:             DefaultMaxFailures,
		DemandFreshnessSeconds:  DefaultDemandFreshnessSeconds,
		ReachableTimeoutSeconds: DefaultReachableTimeoutSeconds,
		CommandTimeoutSeconds:   DefaultCommandTimeoutSeconds,
		TerminationRetries:      DefaultTerminationRetries,
	}
}
