package buffer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"loon/disk"
)

func newTestParallelPool(t *testing.T, numInstances, poolSize int) (*ParallelBufferPool, *countingDiskManager) {
	t.Helper()
	cdm := newTestDiskManager(t)
	return NewParallelBufferPool(numInstances, poolSize, cdm, nil), cdm
}

func TestParallelPool_NewPage_Should_Sweep_Instances_Round_Robin(t *testing.T) {
	p, _ := newTestParallelPool(t, 4, 4)

	ids := make([]disk.PageID, 0, 8)
	seen := map[disk.PageID]bool{}
	for i := 0; i < 8; i++ {
		page, err := p.NewPage()
		require.NoError(t, err)

		id := page.GetPageID()
		assert.False(t, seen[id], "page id %d handed out twice", id)
		seen[id] = true
		ids = append(ids, id)

		require.True(t, p.UnpinPage(id, false))
	}

	// allocation sweeps the instances starting from the round robin index
	for i, id := range ids {
		assert.Equal(t, disk.PageID(i%4), id%4)
	}
}

func TestParallelPool_Should_Route_Page_To_Allocating_Instance(t *testing.T) {
	p, _ := newTestParallelPool(t, 4, 4)

	for i := 0; i < 8; i++ {
		page, err := p.NewPage()
		require.NoError(t, err)
		id := page.GetPageID()

		owner := p.InstanceFor(id)
		assert.Equal(t, int(id%4), owner.instanceIdx)

		// the routed instance resolves every operation on the id
		fetched, err := p.FetchPage(id)
		require.NoError(t, err)
		assert.Same(t, page, fetched)

		require.True(t, p.UnpinPage(id, false))
		require.True(t, p.UnpinPage(id, false))
		require.NoError(t, p.FlushPage(id))
		require.NoError(t, p.DeletePage(id))
	}
}

func TestParallelPool_Should_Skip_Exhausted_Instances(t *testing.T) {
	p, _ := newTestParallelPool(t, 2, 1)

	p0, err := p.NewPage()
	require.NoError(t, err)
	assert.Equal(t, disk.PageID(0), p0.GetPageID()%2)

	// the round robin start index has moved on to instance 1
	p1, err := p.NewPage()
	require.NoError(t, err)
	assert.Equal(t, disk.PageID(1), p1.GetPageID()%2)

	_, err = p.NewPage()
	assert.ErrorIs(t, err, ErrAllFramesPinned)

	// the sweep starts at instance 1, which is full, and falls through to
	// instance 0
	require.True(t, p.UnpinPage(p0.GetPageID(), false))
	p2, err := p.NewPage()
	require.NoError(t, err)
	assert.Equal(t, disk.PageID(0), p2.GetPageID()%2)
}

func TestParallelPool_Should_Treat_Zero_Instances_As_One(t *testing.T) {
	p, _ := newTestParallelPool(t, 0, 2)

	assert.Equal(t, 2, p.GetPoolSize())

	page, err := p.NewPage()
	require.NoError(t, err)
	assert.Equal(t, p.instances[0], p.InstanceFor(page.GetPageID()))
}

func TestParallelPool_GetPoolSize_Should_Sum_Instances(t *testing.T) {
	p, _ := newTestParallelPool(t, 4, 8)
	assert.Equal(t, 32, p.GetPoolSize())
}

func TestParallelPool_Invalid_Page_Id_Should_Be_Rejected(t *testing.T) {
	p, _ := newTestParallelPool(t, 4, 2)

	_, err := p.FetchPage(disk.InvalidPageID)
	assert.ErrorIs(t, err, ErrInvalidPageID)
	assert.False(t, p.UnpinPage(disk.InvalidPageID, true))
	assert.ErrorIs(t, p.FlushPage(disk.InvalidPageID), ErrInvalidPageID)
	assert.ErrorIs(t, p.DeletePage(disk.InvalidPageID), ErrInvalidPageID)
}

func TestParallelPool_Should_Survive_Concurrent_Access(t *testing.T) {
	p, _ := newTestParallelPool(t, 4, 8)

	var g errgroup.Group
	for w := 0; w < 8; w++ {
		w := w
		g.Go(func() error {
			for i := 0; i < 25; i++ {
				page, err := p.NewPage()
				if err != nil {
					return err
				}
				id := page.GetPageID()
				copy(page.GetData(), []byte(fmt.Sprintf("worker %d iteration %d", w, i)))
				if !p.UnpinPage(id, true) {
					return fmt.Errorf("unpin of page %d failed", id)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.NoError(t, p.FlushAllPages())
	for _, instance := range p.instances {
		checkPoolInvariants(t, instance)
	}
}
