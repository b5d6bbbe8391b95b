// Command lfbench spawns named producer and consumer goroutines against a
// shared Stack or Queue, verifies every pushed id was consumed exactly
// once, then reports throughput - optionally as an HTML chart. It exists
// to exercise the library end-to-end and to compare it against a bounded
// baseline.
package main

import (
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	golfrb "github.com/LENSHOOD/go-lock-free-ring-buffer"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	lockfree "github.com/gsingh-ds/go-lockfree-containers"
)

type config struct {
	container  string
	producers  int
	consumers  int
	elements   int
	iterations int
	capacity   int
	chartPath  string
}

func (c *config) parse() error {
	flag.StringVar(&c.container, "container", "queue", "container under test: \"queue\" or \"stack\"")
	flag.IntVar(&c.producers, "producers", 4, "number of producer goroutines")
	flag.IntVar(&c.consumers, "consumers", 4, "number of consumer goroutines")
	flag.IntVar(&c.elements, "elements", 40000, "total number of values pushed across all producers")
	flag.IntVar(&c.iterations, "iterations", 1, "number of produce/consume rounds to run")
	flag.IntVar(&c.capacity, "capacity", 128, "initial node capacity")
	flag.StringVar(&c.chartPath, "chart", "", "if set, write an HTML throughput chart to this path")
	flag.Parse()

	if c.container != "queue" && c.container != "stack" {
		return errors.Errorf("container must be \"queue\" or \"stack\", got %q", c.container)
	}
	if c.producers <= 0 || c.consumers <= 0 {
		return errors.New("producers and consumers must be positive")
	}
	if c.producers > c.elements || c.consumers > c.elements {
		return errors.New("producers and consumers must each be <= elements")
	}
	if c.elements%c.producers != 0 {
		return errors.New("elements must be a multiple of producers")
	}
	return nil
}

func main() {
	var cfg config
	if err := cfg.parse(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	var points []opts.LineData
	var labels []string

	for i := 0; i < cfg.iterations; i++ {
		var elapsed time.Duration
		var err error
		switch cfg.container {
		case "queue":
			elapsed, err = runQueueRound(cfg)
		case "stack":
			elapsed, err = runStackRound(cfg)
		}
		if err != nil {
			log.WithError(err).Fatal("round failed verification")
		}

		throughput := float64(cfg.elements) / elapsed.Seconds()
		log.WithFields(log.Fields{
			"round":      i,
			"container":  cfg.container,
			"elapsed":    elapsed,
			"throughput": throughput,
		}).Info("round complete")

		labels = append(labels, fmt.Sprintf("round %d", i))
		points = append(points, opts.LineData{Value: throughput})
	}

	baseline := runBaselineRound(cfg)
	log.WithField("throughput", baseline).Info("LENSHOOD bounded-ringbuffer baseline")

	if cfg.chartPath != "" {
		if err := renderChart(cfg, labels, points, baseline); err != nil {
			log.WithError(err).Fatal("failed to render chart")
		}
	}
}

// runQueueRound pushes cfg.elements ids across cfg.producers named
// goroutines and pops them with cfg.consumers named goroutines, checking
// that every id is consumed exactly once.
func runQueueRound(cfg config) (time.Duration, error) {
	q := lockfree.NewQueue[int](cfg.capacity)
	defer q.Close()

	perProducer := cfg.elements / cfg.producers
	consumed := make([]int32, cfg.elements)
	var consumedMu sync.Mutex
	var poppedCount int

	start := time.Now()

	var producerWG sync.WaitGroup
	producer := lockfree.NewQueueProducer(q)
	for i := 0; i < cfg.producers; i++ {
		producerWG.Add(1)
		go func(name string, offset int) {
			defer producerWG.Done()
			p := producer.Clone()
			log.WithField("goroutine", name).Debug("producing")
			for id := offset; id < offset+perProducer; id++ {
				p.Push(id)
			}
		}(fmt.Sprintf("producer-%d", i), i*perProducer)
	}

	var consumerWG sync.WaitGroup
	consumer := lockfree.NewQueueConsumer(q)
	for i := 0; i < cfg.consumers; i++ {
		consumerWG.Add(1)
		go func(name string) {
			defer consumerWG.Done()
			c := consumer.Clone()
			log.WithField("goroutine", name).Debug("consuming")
			for {
				consumedMu.Lock()
				done := poppedCount >= cfg.elements
				consumedMu.Unlock()
				if done {
					return
				}
				id, ok := c.Pop()
				if !ok {
					continue
				}
				consumedMu.Lock()
				consumed[id]++
				poppedCount++
				consumedMu.Unlock()
			}
		}(fmt.Sprintf("consumer-%d", i))
	}

	producerWG.Wait()
	consumerWG.Wait()
	elapsed := time.Since(start)

	for id, count := range consumed {
		if count != 1 {
			return elapsed, errors.Errorf("id %d consumed %d times, want exactly 1", id, count)
		}
	}
	return elapsed, nil
}

// runStackRound is the LIFO analogue of runQueueRound, exercising Stack[T]
// under the same producer/consumer harness.
func runStackRound(cfg config) (time.Duration, error) {
	s := lockfree.NewStack[int](cfg.capacity)
	defer s.Close()

	perProducer := cfg.elements / cfg.producers
	consumed := make([]int32, cfg.elements)
	var consumedMu sync.Mutex
	var poppedCount int

	start := time.Now()

	var producerWG sync.WaitGroup
	producer := lockfree.NewStackProducer(s)
	for i := 0; i < cfg.producers; i++ {
		producerWG.Add(1)
		go func(offset int) {
			defer producerWG.Done()
			p := producer.Clone()
			for id := offset; id < offset+perProducer; id++ {
				p.Push(id)
			}
		}(i * perProducer)
	}

	var consumerWG sync.WaitGroup
	consumer := lockfree.NewStackConsumer(s)
	for i := 0; i < cfg.consumers; i++ {
		consumerWG.Add(1)
		go func() {
			defer consumerWG.Done()
			c := consumer.Clone()
			for {
				consumedMu.Lock()
				done := poppedCount >= cfg.elements
				consumedMu.Unlock()
				if done {
					return
				}
				id, ok := c.Pop()
				if !ok {
					continue
				}
				consumedMu.Lock()
				consumed[id]++
				poppedCount++
				consumedMu.Unlock()
			}
		}()
	}

	producerWG.Wait()
	consumerWG.Wait()
	elapsed := time.Since(start)

	for id, count := range consumed {
		if count != 1 {
			return elapsed, errors.Errorf("id %d consumed %d times, want exactly 1", id, count)
		}
	}
	return elapsed, nil
}

// runBaselineRound measures the bounded-capacity ring buffer this module
// was benchmarked against in its original form, so lfbench's reported
// throughput has a reference point. It is never part of the correctness
// verification: the ring buffer is bounded and single-shot by design, so
// it is filled and drained once rather than run through the producer/
// consumer harness above.
func runBaselineRound(cfg config) float64 {
	capacity := uint64(1)
	for capacity < uint64(cfg.elements) {
		capacity <<= 1
	}
	rb := golfrb.New[int](capacity)

	start := time.Now()
	for i := 0; i < cfg.elements; i++ {
		for !rb.Offer(i) {
		}
	}
	for i := 0; i < cfg.elements; i++ {
		for {
			if _, ok := rb.Poll(); ok {
				break
			}
		}
	}
	elapsed := time.Since(start)
	return float64(cfg.elements) / elapsed.Seconds()
}

func renderChart(cfg config, labels []string, points []opts.LineData, baseline float64) error {
	f, err := os.Create(cfg.chartPath)
	if err != nil {
		return errors.Wrap(err, "creating chart output file")
	}
	defer f.Close()

	baselineSeries := make([]opts.LineData, len(points))
	for i := range baselineSeries {
		baselineSeries[i] = opts.LineData{Value: baseline}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "lfbench throughput",
			Subtitle: fmt.Sprintf("%s: %d producers / %d consumers / %d elements", cfg.container, cfg.producers, cfg.consumers, cfg.elements),
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "round"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "ops/sec"}),
	)
	line.SetXAxis(labels).
		AddSeries(cfg.container, points).
		AddSeries("LENSHOOD ring buffer baseline", baselineSeries)

	if err := line.Render(f); err != nil {
		return errors.Wrap(err, "rendering chart")
	}
	return nil
}
