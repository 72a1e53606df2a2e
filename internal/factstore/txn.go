package factstore

// Begin starts recording mutations so they can be rolled back.
// Transactions do not nest; Begin panics if one is already open.
func (s *Store) Begin() {
	if s.inTxn {
		panic("factstore: Begin called inside an open transaction")
	}
	s.inTxn = true
	s.undo = s.undo[:0]
}

// Commit keeps every mutation since Begin.
func (s *Store) Commit() {
	s.inTxn = false
	clear(s.undo)
	s.undo = s.undo[:0]
}

// Rollback reverts every mutation since Begin, newest first.
func (s *Store) Rollback() {
	for i := len(s.undo) - 1; i >= 0; i-- {
		s.undo[i]()
	}
	s.inTxn = false
	clear(s.undo)
	s.undo = s.undo[:0]
}

// InTxn reports whether a transaction is open.
func (s *Store) InTxn() bool {
	return s.inTxn
}

// record appends an undo step when a transaction is open.
func (s *Store) record(undo func()) {
	if s.inTxn {
		s.undo = append(s.undo, undo)
	}
}
