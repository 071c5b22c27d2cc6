// Package domain holds the item custody state machine.
//
// Items move through a strict lifecycle: none, checked in, checkout
// requested, checkout request cleared, checked out. Transition functions are
// pure; persistence and collaborator side effects live in the service layer.
package domain
