// Package config loads, validates, and normalizes the TOML configuration for
// ytd.
//
// Configuration resolution order: an explicit --config path, then
// ~/.config/ytd/config.toml, then a project-local ytd.toml. A missing file is
// not an error; defaults apply. Parse failures and invalid values are fatal so
// a run never starts against a half-understood config.
//
// All path fields are tilde-expanded and made absolute during normalization,
// and storage credentials fall back to YTD_ACCESS_KEY/YTD_SECRET_KEY from the
// environment.
package config
