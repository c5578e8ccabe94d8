// Package config loads, normalizes, and validates kubeport configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the KUBEPORT_CONFIG environment
// override. The Config type centralizes every knob the launcher, the detached
// daemon, and the CLI need so that all three processes of one invocation agree
// on socket locations, kubectl flags, and retry budgets.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
