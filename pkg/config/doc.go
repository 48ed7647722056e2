// Package config holds the environment-driven configuration shared by the
// accountd commands. Structs carry cleanenv env tags; the FromEnv
// constructors exist for callers that assemble configuration by hand.
package config
