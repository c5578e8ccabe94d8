// Package supervisor owns the single port-forward child of a daemon.
//
// Start spawns the child once; a failure there is fatal to the daemon. Run then
// waits for either the shutdown signal or the child's exit. An exit is logged
// and, depending on the restart policy, either leaves the supervisor in the
// Exited state until shutdown or respawns the child after a delay. Whatever
// path Run takes, it terminates the child (SIGTERM, then SIGKILL after the
// stop timeout) before returning.
package supervisor
