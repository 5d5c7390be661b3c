// Package preflight checks the filesystem paths and external services cratedig
// depends on. `cratedig config validate` runs every check and prints the
// results; a failed directory check makes validation fail, while unreachable
// services are reported as warnings.
package preflight
