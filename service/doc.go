// Package service orchestrates the durable pieces around the matching
// core: per-symbol books, the command journal, the event outbox and
// snapshots.
//
// It is the single write entry point. Every command takes the same
// path (sequence, journal, apply, stage) and recovery replays that
// path from the newest snapshot, decoupled from network transports
// like gRPC.
package service
