// Package bus provides the two optional transport bindings for
// internal/telemetry's Publisher interface: a ZeroMQ PUB socket pair and
// a WebSocket broadcast hub. Neither binding is required — callers that
// only want in-process stats can pass a nil Publisher to
// telemetry.NewPipeline.
package bus

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/go-zeromq/zmq4"
	"github.com/mbusgw/mbus-core/internal/telemetry"
)

// ZMQConfig holds the two PUB socket bind addresses.
type ZMQConfig struct {
	MeteringURL    string
	DiagnosticsURL string
}

// DefaultZMQConfig returns the conventional local bind addresses.
func DefaultZMQConfig() ZMQConfig {
	return ZMQConfig{
		MeteringURL:    "tcp://*:5556",
		DiagnosticsURL: "tcp://*:5557",
	}
}

// ZMQPublisher publishes MeteringReport on a "metering" PUB topic and
// UnifiedInstrumentation on a "diagnostics" PUB topic, grounded on the
// teacher's lora.ConcentratordDriver eventSock/cmdSock ZeroMQ wiring
// (same library, repurposed from gateway-event ingestion to
// instrumentation-report egress).
type ZMQPublisher struct {
	config ZMQConfig

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	running      bool
	meteringSock zmq4.Socket
	diagSock     zmq4.Socket
}

// NewZMQPublisher constructs a ZMQPublisher that has not yet bound its
// sockets; call Start to do so.
func NewZMQPublisher(config ZMQConfig) *ZMQPublisher {
	ctx, cancel := context.WithCancel(context.Background())
	return &ZMQPublisher{config: config, ctx: ctx, cancel: cancel}
}

// Start binds the metering and diagnostics PUB sockets.
func (p *ZMQPublisher) Start() error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("zmq publisher already running")
	}
	p.running = true
	p.mu.Unlock()

	meteringSock := zmq4.NewPub(p.ctx)
	if err := meteringSock.Listen(p.config.MeteringURL); err != nil {
		return fmt.Errorf("failed to bind metering socket: %w", err)
	}
	diagSock := zmq4.NewPub(p.ctx)
	if err := diagSock.Listen(p.config.DiagnosticsURL); err != nil {
		meteringSock.Close()
		return fmt.Errorf("failed to bind diagnostics socket: %w", err)
	}

	p.mu.Lock()
	p.meteringSock = meteringSock
	p.diagSock = diagSock
	p.mu.Unlock()

	log.Printf("telemetry bus: publishing metering=%s diagnostics=%s", p.config.MeteringURL, p.config.DiagnosticsURL)
	return nil
}

// Stop closes both PUB sockets.
func (p *ZMQPublisher) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	meteringSock := p.meteringSock
	diagSock := p.diagSock
	p.mu.Unlock()

	p.cancel()
	if meteringSock != nil {
		meteringSock.Close()
	}
	if diagSock != nil {
		diagSock.Close()
	}
	return nil
}

// PublishMetering sends report as a two-frame message ("metering", JSON
// payload) on the metering PUB socket.
func (p *ZMQPublisher) PublishMetering(report telemetry.MeteringReport) error {
	data, err := report.JSON()
	if err != nil {
		return fmt.Errorf("marshal metering report: %w", err)
	}
	p.mu.Lock()
	sock := p.meteringSock
	p.mu.Unlock()
	if sock == nil {
		return fmt.Errorf("zmq publisher not started")
	}
	return sock.Send(zmq4.NewMsgFrom([]byte("metering"), data))
}

// PublishInstrumentation sends ui as a two-frame message ("diagnostics",
// JSON payload) on the diagnostics PUB socket.
func (p *ZMQPublisher) PublishInstrumentation(ui telemetry.UnifiedInstrumentation) error {
	data, err := ui.JSON()
	if err != nil {
		return fmt.Errorf("marshal instrumentation report: %w", err)
	}
	p.mu.Lock()
	sock := p.diagSock
	p.mu.Unlock()
	if sock == nil {
		return fmt.Errorf("zmq publisher not started")
	}
	return sock.Send(zmq4.NewMsgFrom([]byte("diagnostics"), data))
}
