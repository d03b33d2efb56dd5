package txnlog

import (
	"sync"

	"github.com/warp/kvengine/kv"
)

// Call records one recorded invocation of a Spy method, with enough
// fields to assert ordering, pairing, and the logged image.
type Call struct {
	Op        kv.Op
	Type      string
	Key       string
	Value     []byte
	TS        float64
	UpdatedAt float64
	TxID      string
}

// Spy is a kv.TxnLogger that records call tags instead of writing a
// file, for tests that assert KVStore's logging behavior without
// touching the filesystem. See design note on logger polymorphism:
// prefer a small interface with a production realization and a spy,
// never leak file-handle machinery into the store.
type Spy struct {
	mu    sync.Mutex
	calls []Call
}

func NewSpy() *Spy { return &Spy{} }

func (s *Spy) record(c Call) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c)
}

// Calls returns a snapshot of recorded calls in invocation order.
func (s *Spy) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *Spy) LogInsertAfter(typ, key string, value []byte, ts, updatedAt float64, txid string) {
	s.record(Call{Op: kv.OpInsertAfter, Type: typ, Key: key, Value: value, TS: ts, UpdatedAt: updatedAt, TxID: txid})
}

func (s *Spy) LogUpdateBefore(typ, key string, value []byte, ts, updatedAt float64, txid string) {
	s.record(Call{Op: kv.OpUpdateBefore, Type: typ, Key: key, Value: value, TS: ts, UpdatedAt: updatedAt, TxID: txid})
}

func (s *Spy) LogUpdateAfter(typ, key string, value []byte, ts, updatedAt float64, txid string) {
	s.record(Call{Op: kv.OpUpdateAfter, Type: typ, Key: key, Value: value, TS: ts, UpdatedAt: updatedAt, TxID: txid})
}

func (s *Spy) LogDeleteBefore(typ, key string, value []byte, ts, updatedAt float64, txid string) {
	s.record(Call{Op: kv.OpDeleteBefore, Type: typ, Key: key, Value: value, TS: ts, UpdatedAt: updatedAt, TxID: txid})
}

func (s *Spy) LogDeleteBeforeMissing(typ, key string, ts, updatedAt float64, txid string) {
	s.record(Call{Op: kv.OpDeleteBeforeMissing, Type: typ, Key: key, TS: ts, UpdatedAt: updatedAt, TxID: txid})
}
