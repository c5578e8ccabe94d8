// Package ipc owns the unix socket control channel between kubeport
// invocations and the daemon serving one (project, service) pair.
//
// SocketPath derives the endpoint name, Listen binds it with a connect probe
// and a lock file guarding against a second daemon, and Server.Serve runs the
// per-connection Health/Stop loop. The client side offers bounded-retry
// Connect, single round trip helpers, and WaitForDisconnect, which polls until
// the endpoint has disappeared from the filesystem.
package ipc
