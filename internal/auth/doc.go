// Package auth decides whether an inbound request may pass the gateway and
// which identity it carries downstream.
//
// The gate checks the app-identity header, validates the bearer credential
// and requires a privileged role. On success the identity headers of the
// request are replaced with the verified values; backends trust those
// headers without further checks.
package auth
