package buffer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ncw/directio"

	"loon/disk"
	"loon/disk/pages"
	"loon/wal"
)

var (
	// ErrAllFramesPinned is returned by FetchPage and NewPage when the free
	// list is empty and every resident frame is pinned.
	ErrAllFramesPinned = errors.New("every frame in the pool is pinned")

	ErrPageNotResident = errors.New("page is not resident in the pool")
	ErrInvalidPageID   = errors.New("invalid page id")
	ErrPagePinned      = errors.New("page is pinned")
)

// BufferPoolInstance owns a fixed array of page frames, the mapping from
// resident page ids to frame indexes, a free list of empty frames and one
// replacer holding the unpinned resident frames. One latch covers every
// public operation; the replacer and the disk manager have their own locks
// and never call back in.
type BufferPoolInstance struct {
	poolSize     int
	numInstances int
	instanceIdx  int
	nextPageID   disk.PageID

	frames    []*pages.Page
	pageTable map[disk.PageID]int
	freeList  []int
	replacer  IReplacer

	diskManager disk.IDiskManager
	logManager  wal.LogManager

	latch sync.Mutex
}

// NewBufferPoolInstance creates a standalone pool that allocates page ids
// without striping.
func NewBufferPoolInstance(poolSize int, dm disk.IDiskManager, lm wal.LogManager) *BufferPoolInstance {
	return NewBufferPoolInstanceForPool(poolSize, 1, 0, dm, lm)
}

// NewBufferPoolInstanceForPool creates one sub-pool of a parallel pool.
// Page ids allocated by instance i are congruent to i mod numInstances, so
// every id routes back to the instance that allocated it. All frames are
// carved out of a single aligned block.
func NewBufferPoolInstanceForPool(poolSize, numInstances, instanceIdx int, dm disk.IDiskManager, lm wal.LogManager) *BufferPoolInstance {
	if poolSize <= 0 {
		panic(fmt.Sprintf("pool size must be positive: %d", poolSize))
	}
	if numInstances <= 0 {
		panic(fmt.Sprintf("a pool belongs to at least one instance: %d", numInstances))
	}
	if instanceIdx < 0 || instanceIdx >= numInstances {
		panic(fmt.Sprintf("instance index %d is out of range for %d instances", instanceIdx, numInstances))
	}
	if lm == nil {
		lm = wal.NoopLM
	}

	block := directio.AlignedBlock(poolSize * disk.PageSize)
	frames := make([]*pages.Page, poolSize)
	freeList := make([]int, poolSize)
	for i := range frames {
		frames[i] = pages.NewPage(block[i*disk.PageSize : (i+1)*disk.PageSize])
		freeList[i] = i
	}

	return &BufferPoolInstance{
		poolSize:     poolSize,
		numInstances: numInstances,
		instanceIdx:  instanceIdx,
		nextPageID:   disk.PageID(instanceIdx),
		frames:       frames,
		pageTable:    make(map[disk.PageID]int, poolSize),
		freeList:     freeList,
		replacer:     NewLruReplacer(poolSize),
		diskManager:  dm,
		logManager:   lm,
	}
}

// WithReplacer swaps the replacement policy. Only valid before the pool is
// used.
func (b *BufferPoolInstance) WithReplacer(r IReplacer) *BufferPoolInstance {
	if len(b.pageTable) != 0 {
		panic("replacer swapped on a pool that already holds pages")
	}
	b.replacer = r
	return b
}

// FetchPage returns the requested page pinned, reading it from disk if it is
// not resident. Fails with ErrAllFramesPinned when no frame can be freed.
func (b *BufferPoolInstance) FetchPage(pageID disk.PageID) (*pages.Page, error) {
	if pageID == disk.InvalidPageID {
		return nil, ErrInvalidPageID
	}

	b.latch.Lock()
	defer b.latch.Unlock()

	if frameIdx, ok := b.pageTable[pageID]; ok {
		frame := b.frames[frameIdx]
		frame.IncrPinCount()
		b.replacer.Pin(frameIdx)
		return frame, nil
	}

	frameIdx, fromFreeList, err := b.victimFrame()
	if err != nil {
		return nil, err
	}

	if err := b.evictFrame(frameIdx); err != nil {
		b.undoVictim(frameIdx, fromFreeList)
		return nil, err
	}

	frame := b.frames[frameIdx]
	frame.SetPageID(pageID)
	frame.IncrPinCount()
	b.pageTable[pageID] = frameIdx

	if err := b.diskManager.ReadPage(pageID, frame.GetData()); err != nil {
		delete(b.pageTable, pageID)
		frame.Reset()
		b.freeList = append(b.freeList, frameIdx)
		return nil, fmt.Errorf("ReadPage failed: %w", err)
	}

	b.replacer.Pin(frameIdx)
	return frame, nil
}

// NewPage allocates a fresh page id and returns its frame pinned. The page
// content starts zeroed and is not read from disk.
func (b *BufferPoolInstance) NewPage() (*pages.Page, error) {
	b.latch.Lock()
	defer b.latch.Unlock()

	frameIdx, fromFreeList, err := b.victimFrame()
	if err != nil {
		return nil, err
	}

	if err := b.evictFrame(frameIdx); err != nil {
		b.undoVictim(frameIdx, fromFreeList)
		return nil, err
	}

	pageID := b.allocatePage()
	frame := b.frames[frameIdx]
	frame.SetPageID(pageID)
	frame.IncrPinCount()
	b.pageTable[pageID] = frameIdx
	b.replacer.Pin(frameIdx)
	return frame, nil
}

// UnpinPage drops one pin. Returns false when the page is not resident or
// its pin count is already zero. A true isDirty marks the page dirty; false
// never clears the flag, an earlier writer may have set it.
func (b *BufferPoolInstance) UnpinPage(pageID disk.PageID, isDirty bool) bool {
	b.latch.Lock()
	defer b.latch.Unlock()

	frameIdx, ok := b.pageTable[pageID]
	if !ok {
		return false
	}

	frame := b.frames[frameIdx]
	if frame.GetPinCount() <= 0 {
		return false
	}

	if isDirty {
		frame.SetDirty()
	}

	frame.DecrPinCount()
	if frame.GetPinCount() == 0 {
		b.replacer.Unpin(frameIdx)
	}
	return true
}

// FlushPage writes a resident page to disk regardless of its dirty flag and
// clears the flag. The page stays resident and keeps its pin count.
func (b *BufferPoolInstance) FlushPage(pageID disk.PageID) error {
	b.latch.Lock()
	defer b.latch.Unlock()

	if pageID == disk.InvalidPageID {
		return ErrInvalidPageID
	}

	frameIdx, ok := b.pageTable[pageID]
	if !ok {
		return ErrPageNotResident
	}

	frame := b.frames[frameIdx]
	if err := b.diskManager.WritePage(pageID, frame.GetData()); err != nil {
		return err
	}

	frame.SetClean()
	return nil
}

// DeletePage removes a page from the pool and deallocates it on disk.
// Returns ErrPagePinned while the page is in use.
func (b *BufferPoolInstance) DeletePage(pageID disk.PageID) error {
	b.latch.Lock()
	defer b.latch.Unlock()

	if pageID == disk.InvalidPageID {
		return ErrInvalidPageID
	}

	b.diskManager.DeallocatePage(pageID)

	frameIdx, ok := b.pageTable[pageID]
	if !ok {
		return nil
	}

	frame := b.frames[frameIdx]
	if frame.GetPinCount() > 0 {
		return ErrPagePinned
	}

	if frame.IsDirty() {
		if err := b.diskManager.WritePage(pageID, frame.GetData()); err != nil {
			return err
		}
	}

	delete(b.pageTable, pageID)
	frame.Reset()
	b.replacer.Pin(frameIdx)
	b.freeList = append(b.freeList, frameIdx)
	return nil
}

// FlushAllPages writes every resident page to disk and clears the dirty
// flags. Residency and pin counts are unaffected. A failing write does not
// stop the remaining pages from being flushed; the errors are joined.
func (b *BufferPoolInstance) FlushAllPages() error {
	b.latch.Lock()
	defer b.latch.Unlock()

	var errs []error
	for pageID, frameIdx := range b.pageTable {
		frame := b.frames[frameIdx]
		if err := b.diskManager.WritePage(pageID, frame.GetData()); err != nil {
			errs = append(errs, err)
			continue
		}
		frame.SetClean()
	}
	return errors.Join(errs...)
}

// EmptyFrameSize returns the number of frames that do not hold any page.
func (b *BufferPoolInstance) EmptyFrameSize() int {
	b.latch.Lock()
	defer b.latch.Unlock()
	return len(b.freeList)
}

func (b *BufferPoolInstance) PoolSize() int {
	return b.poolSize
}

func (b *BufferPoolInstance) GetLogManager() wal.LogManager {
	return b.logManager
}

// victimFrame pops an empty frame from the free list, falling back to the
// replacer. Latch must be held.
func (b *BufferPoolInstance) victimFrame() (frameIdx int, fromFreeList bool, err error) {
	if len(b.freeList) > 0 {
		frameIdx = b.freeList[0]
		b.freeList = b.freeList[1:]
		return frameIdx, true, nil
	}

	frameIdx, err = b.replacer.ChooseVictim()
	if err != nil {
		return 0, false, ErrAllFramesPinned
	}
	if pc := b.frames[frameIdx].GetPinCount(); pc != 0 {
		panic(fmt.Sprintf("frame %d chosen as victim with pin count %d", frameIdx, pc))
	}
	return frameIdx, false, nil
}

// undoVictim returns a frame obtained from victimFrame after a failed
// eviction. Latch must be held.
func (b *BufferPoolInstance) undoVictim(frameIdx int, fromFreeList bool) {
	if fromFreeList {
		b.freeList = append(b.freeList, frameIdx)
	} else {
		b.replacer.Unpin(frameIdx)
	}
}

// evictFrame makes a frame empty: the old page, if any, is written back when
// dirty and its mapping removed. Latch must be held. On error the frame is
// left untouched.
func (b *BufferPoolInstance) evictFrame(frameIdx int) error {
	frame := b.frames[frameIdx]
	oldPageID := frame.GetPageID()
	if oldPageID == disk.InvalidPageID {
		return nil
	}

	if frame.IsDirty() {
		if err := b.diskManager.WritePage(oldPageID, frame.GetData()); err != nil {
			return fmt.Errorf("write-back of page %d failed: %w", oldPageID, err)
		}
	}

	delete(b.pageTable, oldPageID)
	frame.Reset()
	return nil
}

// allocatePage hands out the next page id of this instance's stripe.
func (b *BufferPoolInstance) allocatePage() disk.PageID {
	pageID := b.nextPageID
	b.nextPageID += disk.PageID(b.numInstances)

	if pageID%disk.PageID(b.numInstances) != disk.PageID(b.instanceIdx) {
		panic(fmt.Sprintf("allocated page id %d does not route back to instance %d of %d", pageID, b.instanceIdx, b.numInstances))
	}
	return pageID
}
