package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

var audioExts = map[string]bool{
	".wav":  true,
	".wave": true,
	".mp3":  true,
	".flac": true,
}

type watchCmd struct {
	Dir      string        `arg:"" name:"dir" help:"Directory to watch." type:"existingdir"`
	Debounce time.Duration `help:"Wait this long after the last write before probing." default:"500ms"`
}

func (c *watchCmd) Run(g *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(c.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", c.Dir, err)
	}

	d := newDebouncer(c.Debounce, func(path string) {
		props, err := a.probe(ctx, path)
		if err != nil {
			a.logger.Warn("probe failed", zap.String("file", path), zap.Error(err))
			return
		}
		fmt.Printf("%s  %s %d Hz %d ch %.3fs\n",
			funcStyle.Render(filepath.Base(path)), props.Encoding, props.SampleRate, props.ChannelCount, props.Duration)
	})
	defer d.stop()

	a.logger.Info("watching", zap.String("dir", c.Dir))
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !audioExts[strings.ToLower(filepath.Ext(event.Name))] {
				continue
			}
			d.touch(event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.Warn("watcher error", zap.Error(err))
		case <-ctx.Done():
			return nil
		}
	}
}

// debouncer runs fn for a key once no touch has arrived for delay.
type debouncer struct {
	delay  time.Duration
	fn     func(string)
	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

func newDebouncer(delay time.Duration, fn func(string)) *debouncer {
	return &debouncer{delay: delay, fn: fn, timers: make(map[string]*time.Timer)}
}

func (d *debouncer) touch(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if t, ok := d.timers[key]; ok {
		t.Stop()
	}
	d.timers[key] = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			return
		}
		delete(d.timers, key)
		d.mu.Unlock()
		d.fn(key)
	})
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	for key, t := range d.timers {
		t.Stop()
		delete(d.timers, key)
	}
}
