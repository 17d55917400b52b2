package domain

// Receipt confirms the outcome of a ledger call. Sequence is an opaque
// ordering token; the core records it but never interprets it.
type Receipt struct {
	TxID     string `json:"tx_id"`
	Success  bool   `json:"success"`
	Sequence string `json:"sequence,omitempty"`
	FeeUsed  int64  `json:"fee_used,omitempty"`
}
