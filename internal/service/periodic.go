package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// periodicTask — фоновая горутина, вызывающая fn с начальной задержкой
// и затем по тикеру. Паника внутри fn логируется и не останавливает расписание.
type periodicTask struct {
	name         string
	initialDelay time.Duration
	interval     time.Duration
	fn           func()
	logger       *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// start запускает горутину. Повторный вызов без stop игнорируется.
func (p *periodicTask) start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	taskCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.run(taskCtx, p.done)
}

// stop останавливает горутину и дожидается завершения текущего прохода.
func (p *periodicTask) stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// run — основной цикл фоновой горутины.
func (p *periodicTask) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	if p.initialDelay > 0 {
		timer := time.NewTimer(p.initialDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
	p.safeRun()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.safeRun()
		}
	}
}

// safeRun вызывает fn с перехватом паники.
func (p *periodicTask) safeRun() {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Паника в фоновой задаче",
				slog.String("task", p.name),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	p.fn()
}
