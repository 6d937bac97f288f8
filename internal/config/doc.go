// Package config handles configuration loading, parsing, and validation
// from environment variables and an optional config.yaml. It provides
// type-safe access to server, store, auth and API settings while keeping
// configuration details out of the view layer.
package config
