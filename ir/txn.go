// txn.go - Transaktionen ueber Graph-Mutationen (Undo-Journal)
// Ein fehlgeschlagener Rewrite hinterlaesst damit keine halben Aenderungen.
package ir

// Txn journals graph mutations so they can be undone as a whole. Node ids
// handed out inside a transaction are not reused after a rollback.
type Txn struct {
	g       *Graph
	undo    []func()
	created []NodeID
	done    bool
}

// Begin starts a transaction. Only one transaction may be open per graph.
func (g *Graph) Begin() (*Txn, error) {
	if g.tx != nil {
		return nil, ErrTxnInProgress
	}
	g.tx = &Txn{g: g}
	return g.tx, nil
}

// InTxn reports whether a transaction is open.
func (g *Graph) InTxn() bool { return g.tx != nil }

func (g *Graph) record(undo func()) {
	if g.tx != nil {
		g.tx.undo = append(g.tx.undo, undo)
	}
}

// Created returns the ids of nodes inserted since Begin, in creation order.
func (t *Txn) Created() []NodeID {
	out := make([]NodeID, len(t.created))
	copy(out, t.created)
	return out
}

// Commit keeps all mutations.
func (t *Txn) Commit() {
	if t.done {
		return
	}
	t.done = true
	if t.g.tx == t {
		t.g.tx = nil
	}
}

// Rollback undoes all mutations in reverse order. It is a no-op after Commit.
func (t *Txn) Rollback() {
	if t.done {
		return
	}
	t.done = true
	if t.g.tx != t {
		return
	}

	t.g.tx = nil
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
}
