package wal

import (
	"encoding/binary"

	"github.com/golang/snappy"

	"loon/disk"
)

// LogRecordSerDe converts between log records and their on-disk bytes.
type LogRecordSerDe interface {
	Serialize(lr *LogRecord) []byte
	Deserialize(d []byte, lr *LogRecord)
}

// BinarySerDe encodes records as uvarint fields inside one snappy block.
type BinarySerDe struct{}

var _ LogRecordSerDe = &BinarySerDe{}

func NewBinarySerDe() *BinarySerDe {
	return &BinarySerDe{}
}

func (b *BinarySerDe) Serialize(lr *LogRecord) []byte {
	res := make([]byte, 0, 64+len(lr.Payload))
	res = append(res, byte(lr.T))
	res = binary.AppendUvarint(res, uint64(lr.Lsn))
	res = binary.AppendUvarint(res, uint64(lr.PrevLsn))
	res = binary.AppendUvarint(res, lr.TxnID)
	res = binary.AppendUvarint(res, uint64(lr.PageID))

	res = binary.AppendUvarint(res, uint64(len(lr.Payload)))
	res = append(res, lr.Payload...)

	return snappy.Encode(nil, res)
}

func (b *BinarySerDe) Deserialize(d []byte, lr *LogRecord) {
	data, err := snappy.Decode(nil, d)
	if err != nil {
		panic("corrupt log")
	}

	offset := 1
	uvarint := func() uint64 {
		res, n := binary.Uvarint(data[offset:])
		if n <= 0 {
			panic("corrupt log")
		}
		offset += n

		return res
	}

	lr.T = RecordType(data[0])
	lr.Lsn = LSN(uvarint())
	lr.PrevLsn = LSN(uvarint())
	lr.TxnID = uvarint()
	lr.PageID = disk.PageID(uvarint())

	payloadLen := int(uvarint())
	lr.Payload = make([]byte, payloadLen)
	copy(lr.Payload, data[offset:offset+payloadLen])
}
