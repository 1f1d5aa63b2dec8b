// Package keygen creates and loads the SSH key pair providers use to reach
// the nodes they launch.
//
// Private keys are PEM-encoded OpenSSH keys; public keys are in
// authorized_keys format, ready to upload to a cloud provider.
package keygen
