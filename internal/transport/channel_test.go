package transport

import (
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"teleop_go/internal/models"
)

// mockPort é uma porta em memória: guarda as escritas e serve leituras
// a partir de um canal de linhas
type mockPort struct {
	mu     sync.Mutex
	writes []string
	reads  chan []byte
	buf    []byte
	closed bool
}

func newMockPort() *mockPort {
	return &mockPort{reads: make(chan []byte, 16)}
}

func (p *mockPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errors.New("porta fechada")
	}
	p.writes = append(p.writes, strings.TrimSuffix(string(b), "\n"))
	return len(b), nil
}

func (p *mockPort) Read(b []byte) (int, error) {
	if len(p.buf) == 0 {
		data, ok := <-p.reads
		if !ok {
			return 0, io.EOF
		}
		p.buf = data
	}
	n := copy(b, p.buf)
	p.buf = p.buf[n:]
	return n, nil
}

func (p *mockPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.reads)
	}
	return nil
}

func (p *mockPort) Flush() error { return nil }

func (p *mockPort) written() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.writes))
	copy(out, p.writes)
	return out
}

func (p *mockPort) feed(line string) {
	p.reads <- []byte(line + "\n")
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condição não satisfeita dentro do prazo")
}

func quietConfig() ChannelConfig {
	return ChannelConfig{
		QueueSize:         4,
		AckTimeout:        time.Hour,
		HeartbeatInterval: time.Hour,
	}
}

func TestChannelSendDeliversFrames(t *testing.T) {
	port := newMockPort()
	ch := NewChannel(models.DeviceFeeder, port, NewFeederEncoder(), quietConfig())
	ch.Start()
	defer ch.Close()

	if err := ch.Send(models.MotionCommand{Kind: models.CmdFeederDelta, Scalar: 5}); err != nil {
		t.Fatal(err)
	}

	waitFor(t, time.Second, func() bool {
		w := port.written()
		return len(w) == 1 && w[0] == "F5.00"
	})
}

func TestChannelQueueFullRejectsNewest(t *testing.T) {
	port := newMockPort()
	cfg := quietConfig()
	// Sem Start: nada drena a fila
	ch := NewChannel(models.DeviceFeeder, port, NewFeederEncoder(), cfg)

	for i := 0; i < cfg.QueueSize; i++ {
		if err := ch.Send(models.MotionCommand{Kind: models.CmdFeederDelta, Scalar: 1}); err != nil {
			t.Fatalf("envio %d rejeitado cedo demais: %v", i, err)
		}
	}

	err := ch.Send(models.MotionCommand{Kind: models.CmdFeederDelta, Scalar: 1})
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("erro = %v, esperado ErrQueueFull", err)
	}
	if got := ch.Dropped(); got != 1 {
		t.Errorf("descartados = %d, esperado 1", got)
	}
}

func TestChannelEmergencyStopBypassesQueue(t *testing.T) {
	port := newMockPort()
	ch := NewChannel(models.DeviceRobot1, port, NewRobotEncoder(), quietConfig())

	// Enche a fila antes de o sender existir, depois injeta a emergência:
	// a fila deve ser descartada e ES transmitido primeiro
	pose := &models.RobotPose{}
	for i := 0; i < 4; i++ {
		ch.Send(models.MotionCommand{Kind: models.CmdAbsolute, Pose: pose, Speed: 1})
	}
	ch.EmergencyStop()

	ch.Start()
	defer ch.Close()

	waitFor(t, time.Second, func() bool { return len(port.written()) >= 1 })
	if got := port.written()[0]; got != "ES" {
		t.Fatalf("primeiro frame = %q, esperado ES", got)
	}
	// A fila foi limpa: nenhum movimento pendente atrás da emergência
	time.Sleep(20 * time.Millisecond)
	if got := port.written(); len(got) != 1 {
		t.Fatalf("frames = %v, movimentos descartados deveriam não transmitir", got)
	}
}

func TestChannelLivenessTimeout(t *testing.T) {
	port := newMockPort()
	cfg := quietConfig()
	cfg.AckTimeout = 30 * time.Millisecond
	ch := NewChannel(models.DeviceRobot2, port, NewRobotEncoder(), cfg)

	var mu sync.Mutex
	var transitions []models.ConnectionStatus
	ch.SetStatusHandler(func(_ models.DeviceID, s models.ConnectionStatus) {
		mu.Lock()
		transitions = append(transitions, s)
		mu.Unlock()
	})

	ch.Start()
	defer ch.Close()

	// Silêncio além da janela: Disconnected
	waitFor(t, time.Second, func() bool {
		return ch.Status() == models.StatusDisconnected
	})

	// Qualquer linha recebida restabelece o enlace
	port.feed("A0B0C0D0E0F0")
	waitFor(t, time.Second, func() bool {
		return ch.Status() == models.StatusConnected
	})

	mu.Lock()
	defer mu.Unlock()
	if len(transitions) < 2 {
		t.Fatalf("transições = %v, esperado desconexão seguida de reconexão", transitions)
	}
}

func TestChannelFeedbackHandler(t *testing.T) {
	port := newMockPort()
	ch := NewChannel(models.DeviceFeeder, port, NewFeederEncoder(), quietConfig())

	lines := make(chan string, 1)
	ch.SetFeedbackHandler(func(_ models.DeviceID, line string) {
		lines <- line
	})

	ch.Start()
	defer ch.Close()

	port.feed("POS:42.5")
	select {
	case got := <-lines:
		if got != "POS:42.5" {
			t.Errorf("linha = %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("feedback não entregue")
	}
}

func TestChannelSendAfterClose(t *testing.T) {
	port := newMockPort()
	ch := NewChannel(models.DeviceFeeder, port, NewFeederEncoder(), quietConfig())
	ch.Start()
	ch.Close()

	err := ch.Send(models.MotionCommand{Kind: models.CmdFeederDelta, Scalar: 1})
	if !errors.Is(err, ErrChannelClosed) {
		t.Fatalf("erro = %v, esperado ErrChannelClosed", err)
	}
}
