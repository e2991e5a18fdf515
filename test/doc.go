// Package test runs the service end to end against real mongo and redis containers.
// Run with -tags integration_test.
package test
