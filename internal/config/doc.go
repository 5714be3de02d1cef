// Package config handles loading, validation, and persistence of application
// configuration. Startup configuration comes from a JSON file plus HWAGENT_
// environment overrides and is validated into a typed Config. The Preferences
// type offers a mutable dotted-path view over the same document for runtime
// changes persisted back to disk.
package config
