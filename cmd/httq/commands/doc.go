// Package commands defines the httq CLI.
//
// Commands
//
//   - keygen         Create a keyring (signing and encryption keys)
//   - id             Print the QIK of a keyring, or its [[peer]] block
//   - init-config    Write a default node configuration
//   - orbital        Run an Orbital relay node
//   - send           Send one message through the mesh and exit
//
// Configuration is read from a TOML file (see package config); --log-level
// and --log-format override its [log] section.
package commands
