// Package disk owns the paged database file. The buffer pool never touches
// the file directly, it goes through IDiskManager.
package disk

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/ncw/directio"
)

// PageID identifies a physical page in the database file. Ids are dense
// non-negative integers assigned by the buffer pool's allocator.
type PageID int64

// InvalidPageID marks the absence of a page.
const InvalidPageID PageID = -1

// PageSize is the size of a physical page. The file is opened with O_DIRECT,
// so it has to stay equal to the IO block size.
const PageSize = directio.BlockSize

// FlushInstantly should normally be set to true. If it is false then data might be lost even after a successful write
// operation when power loss occurs before os flushes its io buffers. But when it is false, one thread tests run faster
// thanks to io scheduling of os, so for development it could be set to false. Setting it to false should not change
// the validity of any tests unless a test is simulating a power loss.
const FlushInstantly bool = false

type IDiskManager interface {
	// ReadPage fills dest with the page's bytes. A page that was never
	// written reads as zeroes.
	ReadPage(pageID PageID, dest []byte) error

	// WritePage persists exactly one page of data.
	WritePage(pageID PageID, data []byte) error

	// DeallocatePage marks a page as no longer in use. Ids are not reused by
	// the striped allocator, the mark is bookkeeping for upper layers.
	DeallocatePage(pageID PageID)

	Sync() error
	Close() error
}

var _ IDiskManager = &Manager{}

// Manager is the file backed disk manager. All IO goes through one aligned
// scratch block so that callers may pass arbitrary buffers.
type Manager struct {
	file     *os.File
	filename string
	mu       sync.Mutex
	block    []byte
	freed    *bitset.BitSet
}

func NewManager(file string) (*Manager, error) {
	f, err := directio.OpenFile(file, os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return nil, err
	}

	stats, err := f.Stat()
	if err != nil {
		return nil, err
	}

	filesize := stats.Size()
	if filesize%int64(PageSize) != 0 {
		return nil, fmt.Errorf("db file is corrupt, size %d is not page aligned", filesize)
	}
	log.Printf("db is initializing, file size is %d \n", filesize)

	return &Manager{
		file:     f,
		filename: file,
		block:    directio.AlignedBlock(PageSize),
		freed:    bitset.New(0),
	}, nil
}

func (d *Manager) ReadPage(pageID PageID, dest []byte) error {
	if pageID < 0 {
		panic(fmt.Sprintf("read with invalid page id: %d", pageID))
	}
	if len(dest) != PageSize {
		panic(fmt.Sprintf("read destination is not page sized: %d", len(dest)))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.file.ReadAt(d.block, int64(pageID)*int64(PageSize))
	if err != nil && err != io.EOF {
		return fmt.Errorf("read of page %d failed: %w", pageID, err)
	}

	// a page past the end of the file was allocated but never written, it
	// reads as zeroes.
	for i := n; i < PageSize; i++ {
		d.block[i] = 0
	}

	copy(dest, d.block)
	return nil
}

func (d *Manager) WritePage(pageID PageID, data []byte) error {
	if pageID < 0 {
		panic(fmt.Sprintf("write with invalid page id: %d", pageID))
	}
	if len(data) != PageSize {
		panic(fmt.Sprintf("write buffer is not page sized: %d", len(data)))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	copy(d.block, data)
	n, err := d.file.WriteAt(d.block, int64(pageID)*int64(PageSize))
	if err != nil {
		return fmt.Errorf("write of page %d failed: %w", pageID, err)
	}
	if n != PageSize {
		panic("written bytes are not equal to page size")
	}

	if FlushInstantly {
		if err := d.file.Sync(); err != nil {
			panic(err)
		}
	}

	return nil
}

func (d *Manager) DeallocatePage(pageID PageID) {
	if pageID < 0 {
		panic(fmt.Sprintf("deallocate with invalid page id: %d", pageID))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.freed.Set(uint(pageID))
}

// Deallocated reports whether the page was handed back with DeallocatePage.
func (d *Manager) Deallocated(pageID PageID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return pageID >= 0 && d.freed.Test(uint(pageID))
}

func (d *Manager) Sync() error {
	return d.file.Sync()
}

func (d *Manager) Close() error {
	return d.file.Close()
}
