package buffer

import (
	"errors"
	"sync"

	"loon/disk"
	"loon/disk/pages"
	"loon/wal"
)

// ParallelBufferPool partitions pages over independent pool instances to cut
// latch contention. A page id is owned by instance id mod numInstances; the
// striped allocator guarantees the rule is self consistent for every id the
// pool ever hands out.
type ParallelBufferPool struct {
	poolSize     int
	numInstances int
	instances    []*BufferPoolInstance

	// startIdx spreads NewPage calls over the instances. The latch guards
	// only its advancement, the probed instances rely on their own latches.
	startIdx int
	latch    sync.Mutex
}

func NewParallelBufferPool(numInstances, poolSize int, dm disk.IDiskManager, lm wal.LogManager) *ParallelBufferPool {
	if numInstances < 1 {
		numInstances = 1
	}

	instances := make([]*BufferPoolInstance, numInstances)
	for i := range instances {
		instances[i] = NewBufferPoolInstanceForPool(poolSize, numInstances, i, dm, lm)
	}

	return &ParallelBufferPool{
		poolSize:     poolSize,
		numInstances: numInstances,
		instances:    instances,
	}
}

// GetPoolSize returns the total frame count over all instances.
func (p *ParallelBufferPool) GetPoolSize() int {
	return p.numInstances * p.poolSize
}

// InstanceFor returns the sub-pool that owns the page id.
func (p *ParallelBufferPool) InstanceFor(pageID disk.PageID) *BufferPoolInstance {
	if pageID < 0 {
		panic("no instance owns a negative page id")
	}
	return p.instances[int(pageID%disk.PageID(p.numInstances))]
}

func (p *ParallelBufferPool) FetchPage(pageID disk.PageID) (*pages.Page, error) {
	if pageID == disk.InvalidPageID {
		return nil, ErrInvalidPageID
	}
	return p.InstanceFor(pageID).FetchPage(pageID)
}

func (p *ParallelBufferPool) UnpinPage(pageID disk.PageID, isDirty bool) bool {
	if pageID == disk.InvalidPageID {
		return false
	}
	return p.InstanceFor(pageID).UnpinPage(pageID, isDirty)
}

func (p *ParallelBufferPool) FlushPage(pageID disk.PageID) error {
	if pageID == disk.InvalidPageID {
		return ErrInvalidPageID
	}
	return p.InstanceFor(pageID).FlushPage(pageID)
}

func (p *ParallelBufferPool) DeletePage(pageID disk.PageID) error {
	if pageID == disk.InvalidPageID {
		return ErrInvalidPageID
	}
	return p.InstanceFor(pageID).DeletePage(pageID)
}

// NewPage probes every instance once, starting at a round robin index, and
// returns the first page obtained. The start index advances whether or not a
// page was obtained.
func (p *ParallelBufferPool) NewPage() (*pages.Page, error) {
	p.latch.Lock()
	start := p.startIdx
	p.startIdx = (p.startIdx + 1) % p.numInstances
	p.latch.Unlock()

	for i := 0; i < p.numInstances; i++ {
		page, err := p.instances[(start+i)%p.numInstances].NewPage()
		if err == nil {
			return page, nil
		}
	}
	return nil, ErrAllFramesPinned
}

// FlushAllPages flushes every instance. An instance that fails does not keep
// the others from being flushed; the errors are joined.
func (p *ParallelBufferPool) FlushAllPages() error {
	var errs []error
	for _, instance := range p.instances {
		if err := instance.FlushAllPages(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
