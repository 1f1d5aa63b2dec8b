// Package provider defines the node provider contract every backend
// implements, the provider error taxonomy, and decorators that add retries,
// rate limiting and metrics around any backend.
//
// Backends live in sub-packages (hcloud, kubernetes, docker, openstack,
// static, fake) and are selected by the cluster document's provider.type
// through a [Registry]. The reconciler never branches on provider type.
//
// All calls must be safe to retry: the reconciler may re-issue a call after
// an ambiguous failure.
package provider
