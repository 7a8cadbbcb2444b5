// Package config provides environment-based configuration.
//
// Loads from the process environment (with .env support via godotenv in
// main). Validates required fields and numeric ranges at startup.
package config
