package integrate

import "time"

// settled is sent when a file has seen no events for the settle period. gen
// identifies the timer that fired.
type settled struct {
	name string
	gen  int
}

type pendingFile struct {
	timer *time.Timer
	gen   int
}

// debouncer delays files until their writes settle. A timer that already fired
// when a new event arrives is superseded by a fresh one, and its late delivery
// is rejected by accept.
type debouncer struct {
	settle  time.Duration
	ready   chan settled
	done    <-chan struct{}
	pending map[string]*pendingFile
}

func newDebouncer(settle time.Duration, done <-chan struct{}) *debouncer {
	return &debouncer{
		settle:  settle,
		ready:   make(chan settled),
		done:    done,
		pending: make(map[string]*pendingFile),
	}
}

func (d *debouncer) touch(name string) {
	p, ok := d.pending[name]
	if ok && p.timer.Stop() {
		p.timer.Reset(d.settle)
		return
	}
	gen := 1
	if ok {
		gen = p.gen + 1
	}
	d.pending[name] = &pendingFile{
		gen: gen,
		timer: time.AfterFunc(d.settle, func() {
			select {
			case d.ready <- settled{name: name, gen: gen}:
			case <-d.done:
			}
		}),
	}
}

// accept reports whether s comes from the current timer of its file and, if so,
// forgets the file.
func (d *debouncer) accept(s settled) bool {
	p, ok := d.pending[s.name]
	if !ok || p.gen != s.gen {
		return false
	}
	delete(d.pending, s.name)
	return true
}

func (d *debouncer) stop() {
	for _, p := range d.pending {
		p.timer.Stop()
	}
}
