package wal

// LSN is the sequence number of a log record. LSNs are assigned by the log
// manager and increase monotonically.
type LSN uint64

const ZeroLSN LSN = 0
