// Package configs provides the embedded configuration template for trident.
//
// The template is embedded at build time with //go:embed so it is available
// in every distribution, including plain `go install` builds. It is written
// by `trident config init` as .trident.yaml in the current directory.
//
// Configuration hierarchy (see internal/config.Load):
//  1. Hardcoded defaults (internal/config.NewConfig)
//  2. Project config (.trident.yaml or .trident.yml)
//
// To change the template, edit project-config.example.yaml and rebuild.
package configs

import _ "embed"

// ProjectConfigTemplate is the commented starter configuration created by
// `trident config init`.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
