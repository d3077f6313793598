package lifecycle

import (
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultForceExitAfter bounds total shutdown latency: if any cleanup step
// hangs, the process is terminated anyway instead of becoming unkillable.
const DefaultForceExitAfter = 5 * time.Second

// Step is one named shutdown action. Steps run in registration order,
// best-effort: a failing step is logged and the rest still run.
type Step struct {
	Name string
	Run  func() error
}

// Coordinator runs the registered shutdown steps exactly once, no matter
// how many triggers fire or how often Shutdown is called.
type Coordinator struct {
	// ForceExitAfter overrides DefaultForceExitAfter when positive.
	ForceExitAfter time.Duration

	// exitFn is os.Exit, injectable for tests.
	exitFn func(int)

	mu    sync.Mutex
	steps []Step

	once     sync.Once
	done     chan struct{}
	failed   atomic.Bool
	triggers []Trigger
}

// NewCoordinator creates an empty coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		ForceExitAfter: DefaultForceExitAfter,
		exitFn:         os.Exit,
		done:           make(chan struct{}),
	}
}

// AddStep appends a shutdown step. Steps registered first run first.
func (c *Coordinator) AddStep(name string, run func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps = append(c.steps, Step{Name: name, Run: run})
}

// Arm subscribes the coordinator to the given triggers. Any one of them
// firing starts the single shutdown pass.
func (c *Coordinator) Arm(triggers ...Trigger) {
	c.mu.Lock()
	c.triggers = append(c.triggers, triggers...)
	c.mu.Unlock()

	for _, t := range triggers {
		go func(t Trigger) {
			reason, ok := <-t.Wait()
			if !ok {
				return
			}
			c.Shutdown(reason)
		}(t)
	}
}

// Shutdown runs every registered step once, best-effort, with the bounded
// force-exit fallback armed for the duration. Subsequent calls return
// immediately.
func (c *Coordinator) Shutdown(reason string) {
	c.once.Do(func() {
		log.Printf("[lifecycle] shutting down (%s)", reason)

		forceAfter := c.ForceExitAfter
		if forceAfter <= 0 {
			forceAfter = DefaultForceExitAfter
		}
		forceTimer := time.AfterFunc(forceAfter, func() {
			log.Printf("[lifecycle] shutdown exceeded %s, forcing exit", forceAfter)
			c.exitFn(1)
		})
		defer forceTimer.Stop()

		c.mu.Lock()
		steps := c.steps
		triggers := c.triggers
		c.mu.Unlock()

		for _, t := range triggers {
			t.Stop()
		}
		for _, step := range steps {
			if err := step.Run(); err != nil {
				log.Printf("[lifecycle] %s: %v", step.Name, err)
				c.failed.Store(true)
				continue
			}
			log.Printf("[lifecycle] %s done", step.Name)
		}
		close(c.done)
	})
	<-c.done
}

// Done is closed once the shutdown pass has completed.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Failed reports whether any shutdown step returned an error.
func (c *Coordinator) Failed() bool { return c.failed.Load() }
