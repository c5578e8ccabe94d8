// Package main hosts the kubeport CLI entrypoint and command graph.
//
// The compose subcommands implement the Docker Compose provider contract:
// they launch or stop one detached port-forward daemon per service and report
// progress as JSON status lines on stdout. The hidden detach and daemon
// commands are the re-executed halves of that launch. Everything else lives
// in internal packages; this package only parses flags and wires them up.
package main
