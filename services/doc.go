// Package services holds the resident observers of a town: processes that
// watch or inject traffic without holding a connection of their own.
//
// Services plug into the broker through its hook surface and publish through
// a narrow Publisher interface, so each one can be tested against a recording
// fake instead of a live broker.
package services
