package kv

// =============================================================================
// TXN LOGGER - interface KVStore drives with before/after images
// =============================================================================

// Op identifies which of the five transaction-log record kinds a call
// produces. Values match the wire `op` field exactly.
type Op string

const (
	OpInsertAfter         Op = "insert-after"
	OpUpdateBefore        Op = "update-before"
	OpUpdateAfter         Op = "update-after"
	OpDeleteBefore        Op = "delete-before"
	OpDeleteBeforeMissing Op = "delete-before-missing"
)

// TxnLogger is the five-operation contract KVStore drives on every
// mutation. Implementations are append-only and best-effort: a logger
// error is never allowed to roll back a row change that already
// committed. The log is an advisory audit trail, not a redo log.
//
// Prefer a small interface like this one over leaking the production
// logger's file-handle/rotation machinery into KVStore. The production
// implementation lives in package txnlog; tests can swap in a Spy that
// just records which ops were called, in which order, with which
// fields.
type TxnLogger interface {
	// LogInsertAfter records that (typ, key) was created with value.
	LogInsertAfter(typ, key string, value []byte, ts, updatedAt float64, txid string)

	// LogUpdateBefore records the pre-image of (typ, key) immediately
	// before an UPSERT overwrites it. Paired with LogUpdateAfter by txid.
	LogUpdateBefore(typ, key string, value []byte, ts, updatedAt float64, txid string)

	// LogUpdateAfter records the post-image of (typ, key) after an
	// UPSERT. Paired with LogUpdateBefore by txid.
	LogUpdateAfter(typ, key string, value []byte, ts, updatedAt float64, txid string)

	// LogDeleteBefore records the pre-image of (typ, key) immediately
	// before it is deleted.
	LogDeleteBefore(typ, key string, value []byte, ts, updatedAt float64, txid string)

	// LogDeleteBeforeMissing records a delete of a (typ, key) that did
	// not exist. No value fields are carried.
	LogDeleteBeforeMissing(typ, key string, ts, updatedAt float64, txid string)
}
