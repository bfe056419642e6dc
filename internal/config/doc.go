// Package config provides configuration management for quicksong.
//
// This package handles:
//   - Loading settings from a JSON file with QUICKSONG_* environment overrides
//   - Saving settings with the password obfuscated
//   - Default configuration values
//   - Validation of the download and songs directories
//
// # Default Settings
//
// Use DefaultSettings() to get sensible defaults:
//
//	settings := config.DefaultSettings()
//	// Downloads to ~/Downloads
//	// 5 concurrent downloads, no proxy
//
// # Loading from File
//
//	settings, err := config.Load(config.ResolvePath(flagPath))
//	if err != nil {
//	    // Uses defaults if file doesn't exist
//	}
//
// Every key can be overridden from the environment, e.g.
// QUICKSONG_DOWNLOAD_PATH or QUICKSONG_USE_PROXY=true.
//
// # Saving Settings
//
//	settings.Username = "name"
//	settings.Password = "secret"
//	err := settings.Save(path)
//
// The saved password is only readable on the machine that wrote it; on
// any other machine Load returns an empty password and a new login is
// requested.
package config
