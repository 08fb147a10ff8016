package main

import (
	"encoding/json"
	"log"

	"loon/buffer"
	"loon/common"
	"loon/disk"
)

type demostruct struct {
	Num int
	Val string
}

func main() {
	dm, err := disk.NewManager("loon.db")
	common.PanicIfErr(err)
	defer dm.Close()

	pool := buffer.NewParallelBufferPool(common.DefaultNumInstances, common.DefaultPoolSize, dm, nil)

	for i := 0; i < 50; i++ {
		p, err := pool.NewPage()
		common.PanicIfErr(err)

		x := demostruct{Num: i, Val: "hello"}
		b, _ := json.Marshal(x)
		copy(p.GetData(), b)

		pool.UnpinPage(p.GetPageID(), true)
	}

	common.PanicIfErr(pool.FlushAllPages())
	common.PanicIfErr(dm.Sync())
	log.Printf("wrote 50 pages through a pool of %d frames", pool.GetPoolSize())
}
