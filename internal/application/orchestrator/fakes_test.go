package orchestrator

import (
	"context"
	"errors"
	"sync"

	"github.com/aescanero/emud/pkg/domain"
	"github.com/aescanero/emud/pkg/ports"
)

var errInjected = errors.New("injected failure")

// journal records engine calls in the order they happen
type journal struct {
	mu    sync.Mutex
	calls []string
}

func (j *journal) add(call string) {
	j.mu.Lock()
	j.calls = append(j.calls, call)
	j.mu.Unlock()
}

func (j *journal) snapshot() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.calls))
	copy(out, j.calls)
	return out
}

func (j *journal) count(call string) int {
	n := 0
	for _, c := range j.snapshot() {
		if c == call {
			n++
		}
	}
	return n
}

// failures configures which engine calls misbehave. Keys are journal
// entries such as "gpu.init".
type failures struct {
	errs   map[string]error
	status map[string]domain.Status
	panics map[string]bool
	block  map[string]chan struct{}
}

type fakeSet struct {
	journal *journal
	fail    failures

	mu       sync.Mutex
	programs [][]byte
	samples  [][]int16
	packets  map[int][][]byte
	vertices int
	frame    []byte
}

func newFakeSet() *fakeSet {
	return &fakeSet{
		journal: &journal{},
		fail: failures{
			errs:   map[string]error{},
			status: map[string]domain.Status{},
			panics: map[string]bool{},
			block:  map[string]chan struct{}{},
		},
		packets: map[int][][]byte{},
		frame:   []byte{1, 2, 3, 4},
	}
}

func (f *fakeSet) call(ctx context.Context, name string) error {
	f.journal.add(name)
	if f.fail.panics[name] {
		panic(name + " exploded")
	}
	// A blocked call ignores ctx so only the step timeout can end the wait.
	if ch, ok := f.fail.block[name]; ok {
		<-ch
	}
	return f.fail.errs[name]
}

func (f *fakeSet) initCall(ctx context.Context, name string) domain.Status {
	if err := f.call(ctx, name); err != nil {
		return domain.Status(-1)
	}
	return f.fail.status[name]
}

func (f *fakeSet) factories() ports.EngineFactories {
	return ports.EngineFactories{
		CPU: func() (ports.CPUEngine, error) {
			if err := f.fail.errs["cpu.new"]; err != nil {
				return nil, err
			}
			return &fakeCPU{f}, nil
		},
		GPU: func() (ports.GPUEngine, error) {
			if err := f.fail.errs["gpu.new"]; err != nil {
				return nil, err
			}
			return &fakeGPU{f}, nil
		},
		Audio: func() (ports.AudioEngine, error) {
			if err := f.fail.errs["audio.new"]; err != nil {
				return nil, err
			}
			return &fakeAudio{f}, nil
		},
		Network: func() (ports.NetworkEngine, error) {
			if err := f.fail.errs["network.new"]; err != nil {
				return nil, err
			}
			return &fakeNetwork{f}, nil
		},
	}
}

type fakeCPU struct{ *fakeSet }

func (c *fakeCPU) Init(ctx context.Context, memorySize int) domain.Status {
	return c.initCall(ctx, "cpu.init")
}
func (c *fakeCPU) Start(ctx context.Context) error   { return c.call(ctx, "cpu.start") }
func (c *fakeCPU) Stop(ctx context.Context) error    { return c.call(ctx, "cpu.stop") }
func (c *fakeCPU) Cleanup(ctx context.Context) error { return c.call(ctx, "cpu.cleanup") }
func (c *fakeCPU) LoadProgram(program []byte) bool {
	c.journal.add("cpu.load_program")
	if ch, ok := c.fail.block["cpu.load_program"]; ok {
		<-ch
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.programs = append(c.programs, program)
	return len(program) > 0
}

type fakeGPU struct{ *fakeSet }

func (g *fakeGPU) Init(ctx context.Context, width, height int) domain.Status {
	return g.initCall(ctx, "gpu.init")
}
func (g *fakeGPU) Render(ctx context.Context, vertices []float32, count int) error {
	g.mu.Lock()
	g.vertices = count
	g.mu.Unlock()
	return g.call(ctx, "gpu.render")
}
func (g *fakeGPU) Cleanup(ctx context.Context) error { return g.call(ctx, "gpu.cleanup") }
func (g *fakeGPU) GetFrameBuffer() []byte {
	g.journal.add("gpu.get_frame_buffer")
	return g.frame
}

type fakeAudio struct{ *fakeSet }

func (a *fakeAudio) Init(ctx context.Context) domain.Status { return a.initCall(ctx, "audio.init") }
func (a *fakeAudio) Play(ctx context.Context) error         { return a.call(ctx, "audio.play") }
func (a *fakeAudio) Stop(ctx context.Context) error         { return a.call(ctx, "audio.stop") }
func (a *fakeAudio) Cleanup(ctx context.Context) error      { return a.call(ctx, "audio.cleanup") }
func (a *fakeAudio) QueueAudio(samples []int16) bool {
	a.journal.add("audio.queue_audio")
	a.mu.Lock()
	defer a.mu.Unlock()
	a.samples = append(a.samples, samples)
	return true
}

type fakeNetwork struct{ *fakeSet }

func (n *fakeNetwork) Init(ctx context.Context, port int) domain.Status {
	return n.initCall(ctx, "network.init")
}
func (n *fakeNetwork) Cleanup(ctx context.Context) error { return n.call(ctx, "network.cleanup") }
func (n *fakeNetwork) Send(connectionID int, data []byte) bool {
	n.journal.add("network.send")
	n.mu.Lock()
	defer n.mu.Unlock()
	n.packets[connectionID] = append(n.packets[connectionID], data)
	return connectionID >= 0
}
