package pages

import (
	"fmt"
	"sync"

	"loon/disk"
)

// Page is an in-memory frame holding the bytes of one physical page plus the
// bookkeeping the buffer pool needs. The pool mutates the metadata under its
// own latch; the rw latch here guards page content and belongs to upper
// layers.
type Page struct {
	pageID   disk.PageID
	pinCount int
	isDirty  bool
	rwLatch  sync.RWMutex
	data     []byte
}

// NewPage wraps an externally provided page sized buffer, so that a pool can
// carve all of its frames out of one aligned allocation.
func NewPage(frame []byte) *Page {
	if len(frame) != disk.PageSize {
		panic(fmt.Sprintf("frame buffer is not page sized: %d", len(frame)))
	}

	return &Page{
		pageID: disk.InvalidPageID,
		data:   frame,
	}
}

func (p *Page) GetData() []byte {
	return p.data
}

func (p *Page) GetPageID() disk.PageID {
	return p.pageID
}

func (p *Page) SetPageID(pageID disk.PageID) {
	p.pageID = pageID
}

func (p *Page) GetPinCount() int {
	return p.pinCount
}

func (p *Page) IncrPinCount() {
	p.pinCount++
}

func (p *Page) DecrPinCount() {
	if p.pinCount <= 0 {
		panic(fmt.Sprintf("pin count of page %d decremented below zero", p.pageID))
	}
	p.pinCount--
}

func (p *Page) IsDirty() bool {
	return p.isDirty
}

func (p *Page) SetDirty() {
	p.isDirty = true
}

func (p *Page) SetClean() {
	p.isDirty = false
}

// Reset restores the empty frame state: no page, no pins, clean, zeroed data.
func (p *Page) Reset() {
	p.pageID = disk.InvalidPageID
	p.pinCount = 0
	p.isDirty = false
	for i := range p.data {
		p.data[i] = 0
	}
}

func (p *Page) WLatch() {
	p.rwLatch.Lock()
}

func (p *Page) WUnlatch() {
	p.rwLatch.Unlock()
}

func (p *Page) RLatch() {
	p.rwLatch.RLock()
}

func (p *Page) RUnLatch() {
	p.rwLatch.RUnlock()
}
