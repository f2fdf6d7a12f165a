package scrape

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/oklog/ulid/v2"
)

// ErrPoolClosed is returned when acquiring from a closed pool.
var ErrPoolClosed = errors.New("browser pool is closed")

// PoolConfig controls browser lifecycle within the pool.
type PoolConfig struct {
	// Size is the maximum number of concurrent browser processes.
	Size int
	// MaxAge recycles a browser after it has been alive this long.
	MaxAge time.Duration
	// MaxPages recycles a browser after it has served this many fetches.
	MaxPages int
	// ChromePath points at a Chrome binary. Empty lets rod manage its
	// own Chromium download.
	ChromePath string
}

// Instance is a pooled browser with lifecycle metadata.
type Instance struct {
	ID        string
	Browser   *rod.Browser
	inUse     bool
	createdAt time.Time
	pages     int
}

// BrowserPool shares a bounded set of headless Chrome processes between the
// browser-backed extraction strategies. Acquire blocks when every browser is
// busy; browsers are recycled once they age out or have served too many pages.
type BrowserPool struct {
	mu       sync.Mutex
	browsers map[string]*Instance
	waiting  []chan *Instance
	cfg      PoolConfig
	logger   *slog.Logger
	closed   bool
}

// NewBrowserPool creates an empty pool. Browsers launch lazily on first use.
func NewBrowserPool(cfg PoolConfig, logger *slog.Logger) *BrowserPool {
	if cfg.Size <= 0 {
		cfg.Size = 2
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 30 * time.Minute
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 100
	}
	return &BrowserPool{
		browsers: make(map[string]*Instance),
		cfg:      cfg,
		logger:   logger,
	}
}

// Warmup ensures the Chromium binary is present so the first fetch does not
// pay the download cost.
func (p *BrowserPool) Warmup() error {
	if p.cfg.ChromePath != "" {
		return nil
	}
	path, err := launcher.NewBrowser().Get()
	if err != nil {
		return err
	}
	p.logger.Info("chromium ready", "path", path)
	return nil
}

// Acquire returns a browser, launching one if the pool has capacity and
// blocking otherwise until a browser is released or ctx is done.
func (p *BrowserPool) Acquire(ctx context.Context) (*Instance, error) {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}

	for _, inst := range p.browsers {
		if !inst.inUse && !p.expired(inst) {
			inst.inUse = true
			p.mu.Unlock()
			return inst, nil
		}
	}

	if len(p.browsers) < p.cfg.Size {
		inst, err := p.launch()
		if err != nil {
			p.mu.Unlock()
			return nil, err
		}
		p.browsers[inst.ID] = inst
		p.mu.Unlock()
		return inst, nil
	}

	wait := make(chan *Instance, 1)
	p.waiting = append(p.waiting, wait)
	p.mu.Unlock()

	select {
	case inst, ok := <-wait:
		if !ok {
			return nil, ErrPoolClosed
		}
		return inst, nil
	case <-ctx.Done():
		p.mu.Lock()
		for i, ch := range p.waiting {
			if ch == wait {
				p.waiting = append(p.waiting[:i], p.waiting[i+1:]...)
				break
			}
		}
		p.mu.Unlock()
		return nil, ctx.Err()
	}
}

// Release returns a browser to the pool, recycling it when it has aged out.
func (p *BrowserPool) Release(inst *Instance) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.destroy(inst)
		return
	}

	inst.inUse = false
	inst.pages++

	if p.expired(inst) {
		p.logger.Info("recycling browser", "id", inst.ID, "age", time.Since(inst.createdAt), "pages", inst.pages)
		p.destroy(inst)
		delete(p.browsers, inst.ID)
		p.replaceForWaiter()
		return
	}

	if len(p.waiting) > 0 {
		wait := p.waiting[0]
		p.waiting = p.waiting[1:]
		inst.inUse = true
		wait <- inst
	}
}

// Close shuts down every browser and fails pending waiters.
func (p *BrowserPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	for _, inst := range p.browsers {
		p.destroy(inst)
	}
	p.browsers = make(map[string]*Instance)

	for _, ch := range p.waiting {
		close(ch)
	}
	p.waiting = nil
}

// launch starts a Chrome process and connects to it. Callers hold p.mu.
func (p *BrowserPool) launch() (*Instance, error) {
	l := launcher.New()
	if p.cfg.ChromePath != "" {
		l = l.Bin(p.cfg.ChromePath)
	}
	l = l.
		Headless(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-sandbox").
		Set("disable-extensions").
		Set("disable-background-networking").
		Set("window-size", "1920,1080").
		Set("lang", "en-US,en")

	u, err := l.Launch()
	if err != nil {
		return nil, err
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, err
	}

	inst := &Instance{
		ID:        ulid.Make().String(),
		Browser:   browser,
		inUse:     true,
		createdAt: time.Now(),
	}
	p.logger.Info("browser launched", "id", inst.ID)
	return inst, nil
}

func (p *BrowserPool) expired(inst *Instance) bool {
	if time.Since(inst.createdAt) > p.cfg.MaxAge {
		return true
	}
	return inst.pages >= p.cfg.MaxPages
}

// replaceForWaiter launches a replacement in the background when a recycled
// browser leaves a waiter without a candidate. Callers hold p.mu.
func (p *BrowserPool) replaceForWaiter() {
	if len(p.waiting) == 0 {
		return
	}
	go func() {
		p.mu.Lock()
		if p.closed || len(p.waiting) == 0 {
			p.mu.Unlock()
			return
		}
		inst, err := p.launch()
		if err != nil {
			p.mu.Unlock()
			p.logger.Error("failed to launch replacement browser", "error", err)
			return
		}
		p.browsers[inst.ID] = inst
		wait := p.waiting[0]
		p.waiting = p.waiting[1:]
		p.mu.Unlock()
		wait <- inst
	}()
}

func (p *BrowserPool) destroy(inst *Instance) {
	if inst.Browser != nil {
		if err := inst.Browser.Close(); err != nil {
			p.logger.Warn("error closing browser", "id", inst.ID, "error", err)
		}
	}
}
