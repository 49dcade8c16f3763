package domain

import "strconv"

// Seqno is the monotonically increasing, transaction-scoped version counter
// used to order every lifetime transition. Seqnos are allocated by the
// lifetime ledger inside the transaction that uses them; zero is never a
// valid allocated value.
type Seqno int64

// Valid reports whether the seqno was actually allocated.
func (s Seqno) Valid() bool { return s > 0 }

func (s Seqno) String() string { return strconv.FormatInt(int64(s), 10) }
