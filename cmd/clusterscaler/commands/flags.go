package commands

import (
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/imamik/clusterscaler/cmd/clusterscaler/handlers"
	"github.com/imamik/clusterscaler/internal/api"
	"github.com/imamik/clusterscaler/internal/config"
)

const (
	flagConfig        = "config"
	flagAddr          = "addr"
	flagDebug         = "debug"
	flagJSON          = "json"
	flagAll           = "all"
	flagProviderQPS   = "provider-qps"
	flagProviderBurst = "provider-burst"
	flagStateBackend  = "state-backend"
	flagS3Bucket      = "s3-bucket"
	flagS3Endpoint    = "s3-endpoint"
	flagS3Region      = "s3-region"
	flagS3AccessKey   = "s3-access-key"
	flagS3SecretKey   = "s3-secret-key"
	flagS3PathStyle   = "s3-path-style"
	flagEtcdEndpoints = "etcd-endpoints"
)

// envPrefix prefixes the environment variables every flag can be set from,
// e.g. CLUSTERSCALER_STATE_BACKEND for --state-backend.
const envPrefix = "clusterscaler"

// bindEnv returns a viper instance reading flags, falling back to the
// matching environment variables.
func bindEnv(flags *pflag.FlagSet) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	lo.Must0(v.BindPFlags(flags))
	return v
}

// addSessionFlags registers the flags of commands that load the cluster
// document and talk to its provider.
func addSessionFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP(flagConfig, "c", config.DefaultConfigFilename, "Path to cluster configuration file")
	flags.Float64(flagProviderQPS, handlers.DefaultProviderQPS, "Provider API calls per second")
	flags.Int(flagProviderBurst, handlers.DefaultProviderBurst, "Provider API burst size")

	flags.String(flagStateBackend, handlers.StateNone, "State snapshot backend (none, s3, etcd)")
	flags.String(flagS3Bucket, "", "S3 bucket holding state snapshots")
	flags.String(flagS3Endpoint, "", "S3 endpoint URL (empty for AWS)")
	flags.String(flagS3Region, "us-east-1", "S3 region")
	flags.String(flagS3AccessKey, "", "S3 access key (default credential chain when empty)")
	flags.String(flagS3SecretKey, "", "S3 secret key")
	flags.Bool(flagS3PathStyle, false, "Use path-style S3 addressing")
	flags.StringSlice(flagEtcdEndpoints, nil, "etcd endpoints holding state snapshots")
}

func sessionOptions(v *viper.Viper) handlers.Options {
	return handlers.Options{
		ConfigPath:    v.GetString(flagConfig),
		ProviderQPS:   v.GetFloat64(flagProviderQPS),
		ProviderBurst: v.GetInt(flagProviderBurst),
		State: handlers.StateOptions{
			Backend:       v.GetString(flagStateBackend),
			Bucket:        v.GetString(flagS3Bucket),
			Endpoint:      v.GetString(flagS3Endpoint),
			Region:        v.GetString(flagS3Region),
			AccessKey:     v.GetString(flagS3AccessKey),
			SecretKey:     v.GetString(flagS3SecretKey),
			PathStyle:     v.GetBool(flagS3PathStyle),
			EtcdEndpoints: v.GetStringSlice(flagEtcdEndpoints),
		},
	}
}

// addAddrFlag registers the daemon address flag.
func addAddrFlag(cmd *cobra.Command, usage string) {
	cmd.Flags().String(flagAddr, api.DefaultAddr, usage)
}
