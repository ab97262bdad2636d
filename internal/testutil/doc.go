// Package testutil contains helper builders and recorders used across tests
// to reduce boilerplate when constructing events and sessions and asserting
// dispatcher behavior. They are not intended for production usage.
package testutil
