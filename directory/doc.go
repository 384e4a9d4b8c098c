// Package directory is the operation surface of the agent registry.
//
// Every call authorizes against the permission oracle first, then
// validates, then mutates the record store, then publishes events. The
// facade owns no state of its own: the store is the single source of
// truth, the ranking engine reads snapshots, and the bus receives
// copies. Embedding gateway outages degrade search quality but never
// fail a registration, and unregistering an id that is already gone is
// success, not an error.
package directory
