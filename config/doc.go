// Package config loads and validates tarchan server configuration.
//
// Configuration sources, in order of precedence (highest first):
//
//  1. Command-line flags
//  2. Environment variables with the TARCHAN_ prefix (dots become
//     underscores, e.g. TARCHAN_STORAGE_BUCKET)
//  3. YAML config files (later files override earlier ones)
//  4. Built-in defaults
//
// Structs are validated with go-playground/validator after unmarshalling;
// a missing bucket or base URL fails Load rather than surfacing later at
// request time.
package config
