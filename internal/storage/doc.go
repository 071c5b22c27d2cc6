// Package storage defines the persistence interfaces for the custody engine.
//
// The vault records are exclusively owned by the vault service; no other
// component mutates them directly. Implementations live in subpackages.
package storage
