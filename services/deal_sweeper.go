package services

import (
	"context"
	"log"
	"time"
)

// DealSweeper 定时清理过期活动的后台任务。显式构造、显式启停,
// 测试可绕过定时器直接调用 DealService.ExpireDue。
type DealSweeper struct {
	deals    *DealService
	interval time.Duration
	onSweep  func(processed int, err error)
	stop     chan struct{}
	done     chan struct{}
}

func NewDealSweeper(deals *DealService, interval time.Duration) *DealSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &DealSweeper{
		deals:    deals,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// OnSweep 每轮清理结束后的回调，用于上报指标
func (w *DealSweeper) OnSweep(fn func(processed int, err error)) {
	w.onSweep = fn
}

func (w *DealSweeper) Start() {
	go w.run()
	log.Printf("Deal sweeper started, interval %s", w.interval)
}

func (w *DealSweeper) run() {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.sweep()
		case <-w.stop:
			return
		}
	}
}

func (w *DealSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	processed, err := w.deals.ExpireDue(ctx, time.Now())
	if err != nil {
		log.Printf("Error processing expired deals: %v", err)
	} else {
		log.Printf("Processed %d expired deals", processed)
	}
	if w.onSweep != nil {
		w.onSweep(processed, err)
	}
}

func (w *DealSweeper) Stop() {
	close(w.stop)
	<-w.done
}
