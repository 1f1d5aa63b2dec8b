// Package ssh provides an SSH client for executing commands on remote nodes.
//
// Cloud and bare-metal providers use it to run a node type's setup, start,
// and stop commands. The client supports key-based authentication, retries
// the TCP dial while a freshly booted machine brings up sshd, and reports
// the remote exit status separately from transport failures.
package ssh
