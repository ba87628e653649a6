// Package cmd implements the tethru command line interface.
package cmd
