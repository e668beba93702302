// Command qfqsim is a small simulation CLI exercising the full QFQ-RL
// pipeline: classify → enqueue → activation → spinner → transmit. It admits
// a fixed set of weighted classes, feeds them synthetic traffic from a
// handful of producer goroutines, and prints per-class throughput once the
// backlog has drained.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	qfqrl "github.com/sivasankariit/qfq-rl"
	"github.com/sivasankariit/qfq-rl/classify"
	"github.com/sivasankariit/qfq-rl/internal/qfqlog"
	"github.com/sivasankariit/qfq-rl/queue"
	"github.com/sivasankariit/qfq-rl/spinner"
	"github.com/sivasankariit/qfq-rl/transmit"
)

type simPacket uint32

func (p simPacket) Len() uint32 { return uint32(p) }

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "qfqsim:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		numClasses  = flag.Int("classes", 4, "number of weighted classes to simulate")
		producers   = flag.Int("producers", 2, "number of concurrent producer goroutines")
		packetsEach = flag.Int("packets", 2000, "packets enqueued per producer")
		duration    = flag.Duration("timeout", 10*time.Second, "maximum time to let the spinner drain")
	)
	flag.Parse()

	// right-sizes GOMAXPROCS under cgroup CPU quotas before the spinner
	// goroutine starts; the spinner is not pinned to a CPU.
	undo, err := maxprocs.Set(maxprocs.Logger(func(string, ...any) {}))
	if err != nil {
		return fmt.Errorf("setting GOMAXPROCS: %w", err)
	}
	defer undo()

	log := qfqlog.New(slog.NewTextHandler(os.Stderr, nil))

	classifier := classify.Func(func(pkt queue.Packet) classify.Result {
		return classify.Result{ClassID: uint32(pkt.Len()) % uint32(*numClasses), HasClass: true}
	})

	sched := qfqrl.New(qfqrl.SchedulerConfig{
		ActivationShards: *producers,
	}, classifier, func() int64 { return time.Now().UnixNano() }, log)

	for i := 0; i < *numClasses; i++ {
		cfg := qfqrl.DefaultClassConfig(uint32(i))
		cfg.Weight = int64(i + 1)
		if err := sched.ConfigureClass(cfg, nil); err != nil {
			return fmt.Errorf("configuring class %d: %w", i, err)
		}
	}

	sink := &transmit.Discard{}
	sp := spinner.New(sched.Engine(), sched.Activation(), sink, log)
	go sp.Run()
	defer sp.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)
	for p := 0; p < *producers; p++ {
		shard := p
		group.Go(func() error {
			rnd := rand.New(rand.NewSource(int64(shard) + 1))
			for i := 0; i < *packetsEach; i++ {
				select {
				case <-groupCtx.Done():
					return groupCtx.Err()
				default:
				}
				pkt := simPacket(64 + rnd.Intn(1436))
				if err := sched.Enqueue(pkt, shard); err != nil {
					continue
				}
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil && err != context.DeadlineExceeded {
		return err
	}

	deadline := time.Now().Add(*duration)
	total := *producers * *packetsEach
	for sink.Count() < total && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	fmt.Printf("transmitted %d packets across %d classes\n", sink.Count(), *numClasses)
	for i := 0; i < *numClasses; i++ {
		if stats, ok := sched.ClassStats(uint32(i)); ok {
			fmt.Printf("class %d: weight=%d packets=%d bytes=%d rate=%.0fB/s backlog=%d\n",
				i, i+1, stats.Packets, stats.Bytes, stats.RateBps, stats.QueueLength)
		}
	}

	return nil
}
