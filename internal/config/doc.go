// Package config handles configuration loading for the docent client.
//
// Configuration is loaded from YAML files with environment variable
// expansion. The package provides validation and sensible defaults.
//
// Default config locations (in order):
//
//  1. Path from DOCENT_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/docent/config.yaml
//  3. ~/.config/docent/config.yaml
//
// Example configuration:
//
//	server:
//	  base_url: "https://docent.example.com/api"
//	  request_timeout: "30s"
//
//	credentials:
//	  path: "${XDG_DATA_HOME}/docent/credentials.json"
//
//	logging:
//	  level: "info"
//	  format: "text"
package config
