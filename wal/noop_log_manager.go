package wal

// NoopLM stands in when no log manager is configured.
var NoopLM LogManager = &noopLM{}

type noopLM struct{}

var _ LogManager = &noopLM{}

func (n *noopLM) AppendLog(lr *LogRecord) LSN {
	return ZeroLSN
}

func (n *noopLM) Flush() error {
	return nil
}

func (n *noopLM) GetFlushedLSN() LSN {
	return ZeroLSN
}
