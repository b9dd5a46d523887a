// Package config loads the wallet process configuration: a JSON file for
// non-secret settings, overlaid by WALLET_* environment variables. Secrets
// (completion API key, keystore password, DSNs) are never read from the file.
package config
