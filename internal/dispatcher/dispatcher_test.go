package dispatcher

import (
	"sync"
	"testing"
	"time"

	"teleop_go/internal/device"
	"teleop_go/internal/models"
	"teleop_go/internal/motion"
	"teleop_go/internal/pathway"
	"teleop_go/internal/transport"
)

// scriptedSampler devolve snapshots pré-montados, um por tick
type scriptedSampler struct {
	snaps []models.ControllerSnapshot
	pos   int
}

func (s *scriptedSampler) Sample() models.ControllerSnapshot {
	if s.pos >= len(s.snaps) {
		return models.NeutralSnapshot(false)
	}
	snap := s.snaps[s.pos]
	s.pos++
	return snap
}

func (s *scriptedSampler) push(snaps ...models.ControllerSnapshot) {
	s.snaps = append(s.snaps, snaps...)
}

// neutral monta um snapshot em repouso
func neutral() models.ControllerSnapshot {
	return models.NeutralSnapshot(false)
}

// pressed monta um snapshot com bordas de pressão para os botões dados,
// que também constam como mantidos
func pressed(held []models.Button, edges ...models.Button) models.ControllerSnapshot {
	snap := models.NeutralSnapshot(false)
	for _, b := range held {
		snap.Held[b] = true
	}
	for _, b := range edges {
		snap.Held[b] = true
		snap.JustPressed[b] = true
	}
	return snap
}

// released monta um snapshot com bordas de soltura
func released(buttons ...models.Button) models.ControllerSnapshot {
	snap := models.NeutralSnapshot(false)
	for _, b := range buttons {
		snap.JustReleased[b] = true
	}
	return snap
}

type fakeSink struct {
	mu     sync.Mutex
	sent   []models.MotionCommand
	estops int
	clears int
	status models.ConnectionStatus
	err    error
}

func newFakeSink() *fakeSink {
	return &fakeSink{status: models.StatusConnected}
}

func (f *fakeSink) Send(cmd models.MotionCommand) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, cmd)
	return nil
}

func (f *fakeSink) EmergencyStop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.estops++
}

func (f *fakeSink) ClearPending() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
}

func (f *fakeSink) Status() models.ConnectionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeSink) commands() []models.MotionCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.MotionCommand, len(f.sent))
	copy(out, f.sent)
	return out
}

type harness struct {
	dispatcher *Dispatcher
	sampler    *scriptedSampler
	devices    *device.Registry
	engine     *pathway.Engine
	sinks      map[models.DeviceID]*fakeSink

	eventsMu sync.Mutex
	events   []models.Event
}

func (h *harness) recordEvent(ev models.Event) {
	h.eventsMu.Lock()
	defer h.eventsMu.Unlock()
	h.events = append(h.events, ev)
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store, err := pathway.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	h := &harness{
		sampler: &scriptedSampler{},
		devices: device.NewRegistry(),
		sinks:   make(map[models.DeviceID]*fakeSink),
	}
	h.engine = pathway.NewEngine(store, 2*time.Second, h.recordEvent)

	sinks := make(map[models.DeviceID]CommandSink)
	for _, id := range models.AllDevices() {
		sink := newFakeSink()
		h.sinks[id] = sink
		sinks[id] = sink
		h.devices.SetStatus(id, models.StatusConnected)
	}

	h.dispatcher = New(DefaultConfig(), h.sampler, motion.NewMapper(motion.DefaultConfig()), h.devices, h.engine, sinks)
	h.dispatcher.SetEventHandler(h.recordEvent)
	return h
}

func (h *harness) tick(n int) {
	for i := 0; i < n; i++ {
		h.dispatcher.Tick(DefaultConfig().TickRate)
	}
}

func (h *harness) hasEvent(code string) bool {
	h.eventsMu.Lock()
	defer h.eventsMu.Unlock()
	for _, ev := range h.events {
		if ev.Code == code {
			return true
		}
	}
	return false
}

// enterTrain leva a sessão para o modo de treino via acorde Back+A
func (h *harness) enterTrain() {
	h.sampler.push(
		pressed(nil, models.ButtonBack),
		pressed([]models.Button{models.ButtonBack}, models.ButtonA),
		released(models.ButtonBack),
	)
	h.tick(3)
}

func TestEmergencyStopPreemptsMotion(t *testing.T) {
	h := newHarness(t)

	// Start com o stick inclinado: a emergência tem prioridade
	snap := pressed(nil, models.ButtonStart)
	snap.LeftStick = models.Stick{X: 1}
	h.sampler.push(snap)
	h.tick(1)

	state := h.dispatcher.Snapshot()
	if !state.EmergencyStop {
		t.Fatal("emergência não armada")
	}
	for id, sink := range h.sinks {
		if sink.estops != 1 {
			t.Errorf("%s: paradas de emergência = %d, esperado 1", id, sink.estops)
		}
		if len(sink.commands()) != 0 {
			t.Errorf("%s: movimento transmitido durante emergência", id)
		}
	}
	if got := h.engine.State(); got != models.PathwayIdle {
		t.Errorf("motor de trajetórias = %s, esperado idle", got)
	}

	// Movimento continua suprimido nos ticks seguintes
	moving := neutral()
	moving.LeftStick = models.Stick{X: 1}
	h.sampler.push(moving)
	h.tick(1)
	if len(h.sinks[models.DeviceRobot1].commands()) != 0 {
		t.Error("movimento transmitido com emergência armada")
	}

	// Start de novo desarma
	h.sampler.push(pressed(nil, models.ButtonStart))
	h.tick(1)
	if h.dispatcher.Snapshot().EmergencyStop {
		t.Fatal("emergência deveria ter sido desarmada")
	}
	if !h.hasEvent(models.EventEmergencyCleared) {
		t.Error("evento de desarme ausente")
	}
}

func TestSelectorCyclesOncePerPress(t *testing.T) {
	h := newHarness(t)

	h.sampler.push(
		pressed(nil, models.ButtonBack),
		pressed([]models.Button{models.ButtonBack}),
		released(models.ButtonBack),
	)
	h.tick(3)

	if got := h.dispatcher.Snapshot().Selector; got != "r2" {
		t.Fatalf("seletor = %s, esperado r2 após um ciclo", got)
	}

	// Ciclo completo volta a r1
	for i := 0; i < 2; i++ {
		h.sampler.push(pressed(nil, models.ButtonBack), released(models.ButtonBack))
		h.tick(2)
	}
	if got := h.dispatcher.Snapshot().Selector; got != "r1" {
		t.Fatalf("seletor = %s, esperado r1 após três ciclos", got)
	}
}

func TestChordSuppressesSelectorCycle(t *testing.T) {
	h := newHarness(t)
	h.enterTrain()

	before := h.dispatcher.Snapshot().Selector

	// Back serviu de modificador para captura: soltura não cicla
	h.sampler.push(
		pressed(nil, models.ButtonBack),
		pressed([]models.Button{models.ButtonBack}, models.ButtonX),
		released(models.ButtonBack),
	)
	h.tick(3)

	if got := h.dispatcher.Snapshot().Selector; got != before {
		t.Fatalf("seletor = %s, acorde não deveria ciclar (antes %s)", got, before)
	}
	if got := h.dispatcher.Snapshot().Pathway.WaypointCount; got != 1 {
		t.Fatalf("waypoints = %d, captura deveria ter acontecido", got)
	}
}

func TestTrainCaptureAndModeMismatch(t *testing.T) {
	h := newHarness(t)
	h.enterTrain()

	if got := h.dispatcher.Snapshot().Mode; got != "train" {
		t.Fatalf("modo = %s, esperado train", got)
	}
	if got := h.engine.State(); got != models.PathwayRecording {
		t.Fatalf("motor = %s, esperado recording", got)
	}

	// Captura com o seletor de gravação (r1)
	h.sampler.push(
		pressed(nil, models.ButtonBack),
		pressed([]models.Button{models.ButtonBack}, models.ButtonX),
		released(models.ButtonBack),
	)
	h.tick(3)
	if got := h.dispatcher.Snapshot().Pathway.WaypointCount; got != 1 {
		t.Fatalf("waypoints = %d, esperado 1", got)
	}

	// Cicla o seletor para r2 e tenta capturar: ModeMismatch
	h.sampler.push(pressed(nil, models.ButtonBack), released(models.ButtonBack))
	h.tick(2)
	h.sampler.push(
		pressed(nil, models.ButtonBack),
		pressed([]models.Button{models.ButtonBack}, models.ButtonX),
		released(models.ButtonBack),
	)
	h.tick(3)

	if !h.hasEvent(models.EventModeMismatch) {
		t.Fatal("evento mode_mismatch ausente")
	}
	if got := h.dispatcher.Snapshot().Pathway.WaypointCount; got != 1 {
		t.Fatalf("waypoints = %d, captura rejeitada não deveria acrescentar", got)
	}
}

func TestManualMotionReachesDevices(t *testing.T) {
	h := newHarness(t)

	snap := neutral()
	snap.LeftStick = models.Stick{X: 1}
	h.sampler.push(snap)
	h.tick(1)

	cmds := h.sinks[models.DeviceRobot1].commands()
	if len(cmds) != 1 {
		t.Fatalf("comandos de r1 = %d, esperado 1", len(cmds))
	}
	if cmds[0].Kind != models.CmdJointDelta || cmds[0].Pose == nil {
		t.Fatalf("comando = %+v, esperado delta articular com pose anexada", cmds[0])
	}
	// Estado aplicado antes do envio
	if got := h.devices.RobotPose(models.DeviceRobot1).Joints[0]; got == 0 {
		t.Error("J1 não atualizado no registro")
	}
	if got := cmds[0].Pose.Joints[0]; got != h.devices.RobotPose(models.DeviceRobot1).Joints[0] {
		t.Error("pose anexada difere do estado do registro")
	}
}

func TestDisconnectedDeviceSuppressed(t *testing.T) {
	h := newHarness(t)
	h.sinks[models.DeviceRobot1].status = models.StatusDisconnected

	snap := neutral()
	snap.LeftStick = models.Stick{X: 1}
	h.sampler.push(snap, snap)
	h.tick(2)

	if got := len(h.sinks[models.DeviceRobot1].commands()); got != 0 {
		t.Fatalf("comandos para dispositivo desconectado = %d", got)
	}
	if got := h.devices.RobotPose(models.DeviceRobot1).Joints[0]; got != 0 {
		t.Fatalf("estado de dispositivo desconectado mutado: J1 = %v", got)
	}
}

func TestQueueFullBecomesEvent(t *testing.T) {
	h := newHarness(t)
	h.sinks[models.DeviceRobot1].err = transport.ErrQueueFull

	snap := neutral()
	snap.LeftStick = models.Stick{X: 1}
	h.sampler.push(snap)
	h.tick(1)

	if !h.hasEvent(models.EventQueueFull) {
		t.Fatal("evento queue_full ausente")
	}
}

func TestPlaybackEmitsAbsoluteTargets(t *testing.T) {
	h := newHarness(t)
	h.enterTrain()

	// Dois waypoints com poses distintas de r1
	h.devices.SetRobotPose(models.DeviceRobot1, models.RobotPose{Joints: [6]float64{0, 0, 0, 0, 0, 0}})
	h.sampler.push(
		pressed(nil, models.ButtonBack),
		pressed([]models.Button{models.ButtonBack}, models.ButtonX),
		released(models.ButtonBack),
	)
	h.tick(3)

	h.devices.SetRobotPose(models.DeviceRobot1, models.RobotPose{Joints: [6]float64{10, 0, 0, 0, 0, 0}})
	h.sampler.push(
		pressed(nil, models.ButtonBack),
		pressed([]models.Button{models.ButtonBack}, models.ButtonX),
		released(models.ButtonBack),
	)
	h.tick(3)

	// Inicia o playback via acorde Back+B
	h.sampler.push(
		pressed(nil, models.ButtonBack),
		pressed([]models.Button{models.ButtonBack}, models.ButtonB),
		released(models.ButtonBack),
	)
	h.tick(3)
	if got := h.engine.State(); got != models.PathwayPlaybackRunning {
		t.Fatalf("motor = %s, esperado playback_running", got)
	}

	// Um tick de playback com o stick inclinado: entrada manual ignorada
	before := len(h.sinks[models.DeviceRobot1].commands())
	snap := neutral()
	snap.LeftStick = models.Stick{X: 1}
	h.sampler.push(snap)
	h.tick(1)

	cmds := h.sinks[models.DeviceRobot1].commands()[before:]
	if len(cmds) != 1 {
		t.Fatalf("comandos de playback = %d, esperado 1", len(cmds))
	}
	if cmds[0].Kind != models.CmdAbsolute || cmds[0].Pose == nil {
		t.Fatalf("comando = %+v, esperado alvo absoluto", cmds[0])
	}
	// 20ms de um segmento de 2s: 1% do caminho entre 0 e 10
	if got := cmds[0].Pose.Joints[0]; got < 0.09 || got > 0.11 {
		t.Errorf("J1 interpolado = %v, esperado ~0.1", got)
	}
}

func TestStopPlaybackChordReturnsToRecording(t *testing.T) {
	h := newHarness(t)
	h.enterTrain()

	for i := 0; i < 2; i++ {
		h.sampler.push(
			pressed(nil, models.ButtonBack),
			pressed([]models.Button{models.ButtonBack}, models.ButtonX),
			released(models.ButtonBack),
		)
		h.tick(3)
	}

	h.sampler.push(
		pressed(nil, models.ButtonBack),
		pressed([]models.Button{models.ButtonBack}, models.ButtonB),
		released(models.ButtonBack),
	)
	h.tick(3)
	if got := h.engine.State(); got != models.PathwayPlaybackRunning {
		t.Fatalf("motor = %s, esperado playback_running", got)
	}

	// Back+D-pad esquerda encerra a reprodução e descarta o movimento
	// ainda enfileirado nos canais
	h.sampler.push(
		pressed(nil, models.ButtonBack),
		pressed([]models.Button{models.ButtonBack}, models.ButtonDPadLeft),
		released(models.ButtonBack),
	)
	h.tick(3)

	if got := h.engine.State(); got != models.PathwayRecording {
		t.Fatalf("motor = %s, esperado recording após o encerramento", got)
	}
	for id, sink := range h.sinks {
		if sink.clears != 1 {
			t.Errorf("%s: descartes de fila = %d, esperado 1", id, sink.clears)
		}
	}
	// Waypoints preservados para continuar o treino
	if got := h.dispatcher.Snapshot().Pathway.WaypointCount; got != 2 {
		t.Errorf("waypoints = %d, encerramento não deveria descartar a trajetória", got)
	}
}

func TestSaveChordRetainsGeneratedName(t *testing.T) {
	h := newHarness(t)
	h.enterTrain()

	h.sampler.push(
		pressed(nil, models.ButtonBack),
		pressed([]models.Button{models.ButtonBack}, models.ButtonX),
		released(models.ButtonBack),
	)
	h.tick(3)

	// Grava sem nome definido na sessão: o motor autogera um
	h.sampler.push(
		pressed(nil, models.ButtonBack),
		pressed([]models.Button{models.ButtonBack}, models.ButtonLB),
		released(models.ButtonBack),
	)
	h.tick(3)
	h.engine.WaitIdle()
	if !h.hasEvent(models.EventPathwaySaved) {
		t.Fatal("evento pathway_saved ausente")
	}

	// O nome autogerado fica retido: Back+RB recarrega a mesma trajetória
	h.sampler.push(
		pressed(nil, models.ButtonBack),
		pressed([]models.Button{models.ButtonBack}, models.ButtonRB),
		released(models.ButtonBack),
	)
	h.tick(3)
	h.engine.WaitIdle()

	if !h.hasEvent(models.EventPathwayLoaded) {
		t.Fatal("evento pathway_loaded ausente, nome efetivo da gravação perdido")
	}
	if h.hasEvent(models.EventPersistenceFailure) {
		t.Fatal("recarregamento falhou após gravação bem-sucedida")
	}
}

func TestEmptyPlaybackRejected(t *testing.T) {
	h := newHarness(t)
	h.enterTrain()

	h.sampler.push(
		pressed(nil, models.ButtonBack),
		pressed([]models.Button{models.ButtonBack}, models.ButtonB),
		released(models.ButtonBack),
	)
	h.tick(3)

	if !h.hasEvent(models.EventEmptyPathway) {
		t.Fatal("evento empty_pathway ausente")
	}
	if got := h.engine.State(); got != models.PathwayRecording {
		t.Fatalf("motor = %s, rejeição não deveria transitar", got)
	}
}

func TestInputStaleSendsSoftStopOnce(t *testing.T) {
	h := newHarness(t)

	h.sampler.push(neutral(), models.NeutralSnapshot(true), models.NeutralSnapshot(true))
	h.tick(3)

	if !h.hasEvent(models.EventInputStale) {
		t.Fatal("evento input_stale ausente")
	}
	cmds := h.sinks[models.DeviceRobot1].commands()
	stops := 0
	for _, cmd := range cmds {
		if cmd.Kind == models.CmdStop {
			stops++
		}
	}
	if stops != 1 {
		t.Fatalf("paradas suaves = %d, esperado exatamente 1 na transição", stops)
	}
}

func TestRequestsAppliedOnTick(t *testing.T) {
	h := newHarness(t)
	h.enterTrain()

	// Captura um waypoint para poder gravar
	h.sampler.push(
		pressed(nil, models.ButtonBack),
		pressed([]models.Button{models.ButtonBack}, models.ButtonX),
		released(models.ButtonBack),
	)
	h.tick(3)

	if err := h.dispatcher.Request("save", "pedido_api"); err != nil {
		t.Fatal(err)
	}
	h.tick(1)
	h.engine.WaitIdle()

	if !h.hasEvent(models.EventPathwaySaved) {
		t.Fatal("evento pathway_saved ausente")
	}
}
