// Command procgroup-demo runs a small in-process process group over the reference
// transport/inmemory transport and store/memstore rendezvous store, exercising broadcast,
// allreduce and barrier across a configurable number of simulated ranks. It exists to
// give the core something runnable end-to-end without a real network transport or
// accelerator.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"k8s.io/klog/v2"

	"github.com/procgroup/procgroup/group"
	"github.com/procgroup/procgroup/reduceop"
	"github.com/procgroup/procgroup/store"
	"github.com/procgroup/procgroup/tensor"
	"github.com/procgroup/procgroup/transport"
	"github.com/procgroup/procgroup/transport/inmemory"
)

var (
	flagSize    = flag.Int("size", 4, "number of simulated ranks in the process group")
	flagThreads = flag.Int("threads", 2, "worker threads per rank's Group")
	flagTimeout = flag.Duration("timeout", 10*time.Second, "per-collective timeout")
)

// sizeFromEnv lets PROCGROUP_DEMO_SIZE override -size, the way GOMLX_BACKEND overrides
// gomlx's -backend flag.
func sizeFromEnv(def int) int {
	if v := os.Getenv("PROCGROUP_DEMO_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	size := sizeFromEnv(*flagSize)

	if err := run(size, *flagThreads, *flagTimeout); err != nil {
		log.Fatalf("procgroup-demo: %v", err)
	}
}

func run(size, threads int, timeout time.Duration) error {
	mem := store.NewMemStore()
	hub := inmemory.NewHub()
	device := transport.Device{Name: "demo"}

	groups := make([]*group.Group, size)
	var wg sync.WaitGroup
	errs := make([]error, size)

	for rank := 0; rank < size; rank++ {
		rank := rank
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, err := group.New(context.Background(), mem, rank, size, group.Options{
				Devices: []transport.Device{device},
				Factory: hub,
				Threads: threads,
				Timeout: timeout,
			})
			if err != nil {
				errs[rank] = err
				return
			}
			groups[rank] = g
		}()
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	defer func() {
		for _, g := range groups {
			if g != nil {
				_ = g.Close()
			}
		}
	}()

	fmt.Printf("connected %d ranks\n", size)

	if err := demoBroadcast(groups); err != nil {
		return err
	}
	if err := demoAllReduce(groups); err != nil {
		return err
	}
	return demoBarrier(groups)
}

func demoBroadcast(groups []*group.Group) error {
	bufs := make([]tensor.ArrayBuffer, len(groups))
	for rank := range groups {
		val := int64(0)
		if rank == 0 {
			val = 42
		}
		bufs[rank] = tensor.FromInt64s([]int64{val}, []int{1})
	}

	var wg sync.WaitGroup
	errs := make([]error, len(groups))
	for rank, g := range groups {
		rank, g := rank, g
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := g.Broadcast(context.Background(), []tensor.ArrayBuffer{bufs[rank]}, 0, 0)
			if err != nil {
				errs[rank] = err
				return
			}
			errs[rank] = w.Wait()
		}()
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	for rank, buf := range bufs {
		vals, err := tensor.Int64s(buf)
		if err != nil {
			return err
		}
		fmt.Printf("broadcast: rank %d has %v\n", rank, vals)
	}
	return nil
}

func demoAllReduce(groups []*group.Group) error {
	bufs := make([]tensor.ArrayBuffer, len(groups))
	for rank := range groups {
		bufs[rank] = tensor.FromInt64s([]int64{int64(rank)}, []int{1})
	}

	var wg sync.WaitGroup
	errs := make([]error, len(groups))
	for rank, g := range groups {
		rank, g := rank, g
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := g.AllReduce(context.Background(), []tensor.ArrayBuffer{bufs[rank]}, reduceop.SUM)
			if err != nil {
				errs[rank] = err
				return
			}
			errs[rank] = w.Wait()
		}()
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	vals, err := tensor.Int64s(bufs[0])
	if err != nil {
		return err
	}
	fmt.Printf("allreduce(sum): every rank now has %v\n", vals)
	return nil
}

func demoBarrier(groups []*group.Group) error {
	var wg sync.WaitGroup
	errs := make([]error, len(groups))
	for rank, g := range groups {
		rank, g := rank, g
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := g.Barrier(context.Background())
			if err != nil {
				errs[rank] = err
				return
			}
			errs[rank] = w.Wait()
		}()
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	fmt.Println("barrier: all ranks synchronized")
	return nil
}
