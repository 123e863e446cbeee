package table

import (
	"github.com/lmtab/lmtab/codec"
)

// View is a validated, zero-copy projection over stored value bytes. The
// bytes may point directly into the engine's memory map, so a view is only
// valid while its transaction is alive; using one after the transaction
// ends is a programming error and panics. Use Value (or Table.GetValue)
// for an owned copy that survives the transaction.
type View[V any] struct {
	raw []byte
	vc  codec.ValueCodec[V]
	tx  *Txn
}

func (view *View[V]) check() {
	if view.tx.done {
		panic("table: view used after its transaction ended")
	}
}

// Bytes returns the stored encoding. The slice is owned by the transaction
// and must not be retained past it.
func (view *View[V]) Bytes() []byte {
	view.check()
	return view.raw
}

// Value decodes the view into an owned value.
func (view *View[V]) Value() (V, error) {
	view.check()
	return view.vc.Unmarshal(view.raw)
}
