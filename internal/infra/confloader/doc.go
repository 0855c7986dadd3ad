// Package confloader loads kvmesh configuration with koanf.
//
// Sources, highest priority first:
//
//  1. Command-line flags (LoadMap)
//  2. Environment variables with the KVMESH_ prefix, optionally seeded from
//     a .env file
//  3. A YAML configuration file
//  4. Defaults already present in the target struct
//
// Watcher reports changes to the configuration file so callers can apply
// the settings that are safe to change at runtime.
package confloader
