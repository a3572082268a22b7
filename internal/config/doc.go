// Package config provides loading and environment overlay for strand
// configuration.
//
// Example:
//
//	cfg := config.Default()
//	if fileCfg, err := config.Load("/etc/strand.yaml"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
package config
