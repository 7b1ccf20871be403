// Package cache holds the JSON-over-Redis value store and the key layout of
// persisted client state. Keys read "namespace:prefix:name" so several
// installations can share one store.
package cache

import "fmt"

// Key prefixes for persisted values.
const (
	SessionPrefix   = "session:"
	DispenserPrefix = "dispenser:"
)

// TokenKey is the key of the current bearer token.
//
// Example: "dispenser:session:token"
func TokenKey(namespace string) string {
	return fmt.Sprintf("%s:%stoken", namespace, SessionPrefix)
}

// ActiveDispenserKey is the key of the uuid of the active dispenser.
//
// Example: "dispenser:dispenser:active"
func ActiveDispenserKey(namespace string) string {
	return fmt.Sprintf("%s:%sactive", namespace, DispenserPrefix)
}
