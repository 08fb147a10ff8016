package wal

import "loon/disk"

type RecordType byte

const (
	TypeInvalid RecordType = iota
	TypeAllocPage
	TypeFreePage
	TypePageUpdate
)

type LogRecord struct {
	T       RecordType
	Lsn     LSN
	PrevLsn LSN
	TxnID   uint64
	PageID  disk.PageID

	// Payload carries the after image for page update records.
	Payload []byte
}

func NewAllocPageLogRecord(txnID uint64, pageID disk.PageID) *LogRecord {
	return &LogRecord{T: TypeAllocPage, TxnID: txnID, PageID: pageID}
}

func NewFreePageLogRecord(txnID uint64, pageID disk.PageID) *LogRecord {
	return &LogRecord{T: TypeFreePage, TxnID: txnID, PageID: pageID}
}

func NewPageUpdateLogRecord(txnID uint64, pageID disk.PageID, payload []byte) *LogRecord {
	return &LogRecord{T: TypePageUpdate, TxnID: txnID, PageID: pageID, Payload: payload}
}
