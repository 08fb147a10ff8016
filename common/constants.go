package common

const (
	// DefaultPoolSize is the number of frames one pool instance holds when
	// the caller does not size it explicitly.
	DefaultPoolSize = 64

	// DefaultNumInstances is the number of sub-pools a parallel pool spreads
	// pages over by default.
	DefaultNumInstances = 4
)
