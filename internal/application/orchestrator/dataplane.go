package orchestrator

import (
	"fmt"

	"github.com/aescanero/emud/pkg/domain"
)

// Data-plane calls run on the caller's goroutine and forward verbatim to the
// owning engine. They fail with domain.ErrNotInitialized, without touching
// any engine, while the run-state flag is false or once cleanup has begun
// releasing engines.

// LoadProgram copies a program image into CPU memory
func (o *Orchestrator) LoadProgram(program []byte) (bool, error) {
	if err := o.guard("load_program"); err != nil {
		return false, err
	}
	defer o.gate.leave()
	ok := o.cpu.LoadProgram(program)
	o.metrics.RecordDataPlane("load_program", ok)
	return ok, nil
}

// GetFrameBuffer returns the GPU's current frame
func (o *Orchestrator) GetFrameBuffer() ([]byte, error) {
	if err := o.guard("get_frame_buffer"); err != nil {
		return nil, err
	}
	defer o.gate.leave()
	frame := o.gpu.GetFrameBuffer()
	o.metrics.RecordDataPlane("get_frame_buffer", frame != nil)
	return frame, nil
}

// QueueAudio hands samples to the audio engine
func (o *Orchestrator) QueueAudio(samples []int16) (bool, error) {
	if err := o.guard("queue_audio"); err != nil {
		return false, err
	}
	defer o.gate.leave()
	ok := o.audio.QueueAudio(samples)
	o.metrics.RecordDataPlane("queue_audio", ok)
	return ok, nil
}

// SendNetworkData writes data to a network connection
func (o *Orchestrator) SendNetworkData(connectionID int, data []byte) (bool, error) {
	if err := o.guard("send_network_data"); err != nil {
		return false, err
	}
	defer o.gate.leave()
	ok := o.network.Send(connectionID, data)
	o.metrics.RecordDataPlane("send_network_data", ok)
	return ok, nil
}

// guard admits a data-plane call through the teardown gate. On success the
// caller must leave the gate when the engine call returns.
func (o *Orchestrator) guard(operation string) error {
	if o.gate.enter() {
		if o.running.Load() {
			return nil
		}
		o.gate.leave()
	}
	o.metrics.RecordDataPlane(operation, false)
	return fmt.Errorf("%s: %w", operation, domain.ErrNotInitialized)
}
