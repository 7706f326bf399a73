// Package tools provides reusable runtime helpers shared by control-plane modules.
//
// Ownership boundary:
// - external command execution (git, npm, preinstall shells, taskkill)
//
// - bounded execution with captured output and exit status
package tools
