// Package middleware provides the HTTP middleware chain for services
// fronted by the admission controller.
//
// The chain is composed outside-in: recovery, request ID, logging,
// then enforcement (Admission or TierLimit) around the business
// handler. Enforcement middleware translates structured denial
// decisions into 429 responses with Retry-After headers; it never
// produces a 500 on its own.
package middleware
