// Package consent holds the visitor's analytics consent and gates the
// tracking client on it.
//
// A Gate starts in StatusPending and never lets an event reach the Tracker
// unless the persisted record says StatusAccepted. Unreadable records are
// treated as absent, so every failure lands in pending rather than accepted.
package consent
