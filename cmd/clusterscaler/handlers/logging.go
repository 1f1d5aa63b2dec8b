package handlers

import (
	"os"

	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// SetupLogging installs the process-wide logger. Development mode is on
// with --debug or DEBUG=true.
func SetupLogging(debug bool) {
	opts := zap.Options{
		Development: debug || os.Getenv("DEBUG") == "true",
	}
	log.SetLogger(zap.New(zap.UseFlagOptions(&opts)))
}
