// Package configs provides the embedded configuration template for notevec.
//
// The template is embedded at build time with go:embed so it ships in
// every distribution. `notevec init` writes it as .notevec.yaml in the
// corpus root; edit the .yaml file here and rebuild to change it.
package configs

import _ "embed"

// ProjectConfigTemplate is written by `notevec init` as .notevec.yaml.
//
//go:embed config.example.yaml
var ProjectConfigTemplate string
