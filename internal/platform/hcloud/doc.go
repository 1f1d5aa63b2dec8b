// Package hcloud wraps the Hetzner Cloud API client with the retry, timeout,
// and error-classification behavior the hcloud node provider needs.
//
// Only the resources a scaling cluster touches are exposed: servers (create,
// list by label selector, relabel, delete) and SSH keys. Deletions go through
// DeleteOperation, which is idempotent and retries locked resources.
//
// Error classification helpers (IsNotFound, IsTransient, IsAlreadyExists) let
// callers decide whether a failure is worth retrying.
package hcloud
