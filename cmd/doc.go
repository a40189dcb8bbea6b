// Package cmd implements the calmcp command line interface.
package cmd
