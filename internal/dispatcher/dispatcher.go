package dispatcher

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"teleop_go/internal/device"
	"teleop_go/internal/models"
	"teleop_go/internal/motion"
	"teleop_go/internal/pathway"
	"teleop_go/internal/transport"
	"teleop_go/pkg/logger"
)

// CommandSink é o destino de comandos de um dispositivo; implementado
// por transport.Channel e por fakes nos testes
type CommandSink interface {
	Send(cmd models.MotionCommand) error
	EmergencyStop()
	ClearPending()
	Status() models.ConnectionStatus
}

// Sampler colhe um snapshot do gamepad por tick
type Sampler interface {
	Sample() models.ControllerSnapshot
}

// Config parametriza o laço de controle
type Config struct {
	// TickRate é o período do laço (20ms = 50Hz)
	TickRate time.Duration
}

// DefaultConfig devolve a parametrização padrão do dispatcher
func DefaultConfig() Config {
	return Config{TickRate: 20 * time.Millisecond}
}

// request é uma operação de trajetória pedida por uma superfície externa;
// é aplicada na goroutine do laço, nunca pelo chamador
type request struct {
	op   string
	name string
}

// feedbackLine é uma linha de posição recebida de um dispositivo
type feedbackLine struct {
	id   models.DeviceID
	line string
}

// Dispatcher é o laço de controle de 50Hz: amostra o gamepad, processa
// as bordas globais em ordem fixa, roteia gravação e playback e aplica a
// saída do mapeador ao estado antes de encaminhá-la aos canais. Toda
// mutação de estado de sessão e de dispositivo acontece aqui.
type Dispatcher struct {
	cfg     Config
	sampler Sampler
	mapper  *motion.Mapper
	devices *device.Registry
	engine  *pathway.Engine
	sinks   map[models.DeviceID]CommandSink

	mu         sync.RWMutex
	mode       models.SessionMode
	space      models.MotionSpace
	selector   models.RobotSelector
	estop      bool
	inputStale bool
	lastName   string
	tickCount  uint64

	// chordUsed suprime o ciclo do seletor quando Back serviu de
	// modificador para outra borda
	chordUsed bool

	requests chan request
	feedback chan feedbackLine

	onEvent    func(models.Event)
	onSnapshot func(models.SessionSnapshot)

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New cria o dispatcher sobre os colaboradores indicados
func New(cfg Config, sampler Sampler, mapper *motion.Mapper, devices *device.Registry, engine *pathway.Engine, sinks map[models.DeviceID]CommandSink) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		cfg:      cfg,
		sampler:  sampler,
		mapper:   mapper,
		devices:  devices,
		engine:   engine,
		sinks:    sinks,
		selector: models.SelectRobot1,
		requests: make(chan request, 16),
		feedback: make(chan feedbackLine, 64),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetEventHandler registra o observador de eventos discretos
func (d *Dispatcher) SetEventHandler(fn func(models.Event)) {
	d.onEvent = fn
}

// SetSnapshotHandler registra o consumidor de snapshots por tick
func (d *Dispatcher) SetSnapshotHandler(fn func(models.SessionSnapshot)) {
	d.onSnapshot = fn
}

// Start inicia o laço de controle
func (d *Dispatcher) Start() {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	d.wg.Add(1)
	go d.run()
	logger.Infof("Dispatcher iniciado a %v por tick", d.cfg.TickRate)
}

// Stop encerra o laço de controle
func (d *Dispatcher) Stop() {
	d.cancel()
	d.wg.Wait()
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
	logger.Info("Dispatcher encerrado")
}

// IsRunning informa se o laço está ativo
func (d *Dispatcher) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.TickRate)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.Tick(d.cfg.TickRate)
		}
	}
}

// Tick executa um ciclo completo do laço de controle. Exportado para os
// testes dirigirem o laço deterministicamente.
func (d *Dispatcher) Tick(dt time.Duration) {
	d.drainFeedback()
	d.drainRequests()

	snap := d.sampler.Sample()
	d.trackStaleness(snap)

	// 1. Bordas globais em ordem fixa de prioridade
	if snap.JustPressed.Has(models.ButtonStart) {
		d.toggleEmergency()
	}
	if d.isEStopped() {
		// A emergência suprime todo o processamento de movimento do tick
		d.publishSnapshot()
		return
	}

	d.handleModeEdges(snap)
	d.handleChordEdges(snap)
	d.handleSelectorEdge(snap)

	// 2. Playback tem precedência sobre entrada manual
	if d.engine.State() == models.PathwayPlaybackRunning {
		d.advancePlayback(dt)
		d.publishSnapshot()
		return
	}

	// 3. Movimento manual (também vivo durante a gravação)
	if !d.backHeld(snap) {
		d.applyManualMotion(snap)
	}

	d.publishSnapshot()
}

// drainFeedback aplica as linhas de posição recebidas desde o último tick
func (d *Dispatcher) drainFeedback() {
	for {
		select {
		case fb := <-d.feedback:
			d.applyFeedback(fb)
		default:
			return
		}
	}
}

func (d *Dispatcher) applyFeedback(fb feedbackLine) {
	switch fb.id {
	case models.DeviceRobot1, models.DeviceRobot2:
		parsed, err := transport.ParseRobotFeedback(fb.line)
		if err != nil {
			logger.Debugf("Feedback de %s descartado: %v", fb.id, err)
			return
		}
		d.devices.SetRobotPose(fb.id, parsed.Pose)
	case models.DeviceFeeder:
		pos, err := transport.ParseFeederFeedback(fb.line)
		if err != nil {
			logger.Debugf("Feedback do alimentador descartado: %v", err)
			return
		}
		d.devices.SetFeederPosition(pos)
	}
}

// drainRequests aplica as operações pedidas pelas superfícies externas
func (d *Dispatcher) drainRequests() {
	for {
		select {
		case req := <-d.requests:
			d.applyRequest(req)
		default:
			return
		}
	}
}

func (d *Dispatcher) applyRequest(req request) {
	var err error
	switch req.op {
	case "save":
		err = d.engine.Save(req.name)
		if err == nil {
			d.setLastName(d.engine.Snapshot().Name)
		}
	case "load":
		err = d.engine.Load(req.name)
		if err == nil {
			d.setLastName(req.name)
		}
	case "clear":
		err = d.engine.Clear(d.currentSelector())
	case "toggle_loop":
		d.engine.ToggleLoop()
	case "toggle_playback":
		err = d.togglePlayback()
	case "stop_playback":
		err = d.stopPlayback()
	case "set_name":
		d.engine.SetName(req.name)
		d.setLastName(req.name)
	}
	if err != nil {
		d.reportPathwayError(err)
	}
}

func (d *Dispatcher) trackStaleness(snap models.ControllerSnapshot) {
	d.mu.Lock()
	was := d.inputStale
	d.inputStale = snap.Stale
	d.mu.Unlock()

	if snap.Stale && !was {
		// Transição para stale: parada suave imediata de todos os
		// dispositivos, já que nenhum delta novo virá
		for id, sink := range d.sinks {
			if sink.Status() == models.StatusConnected {
				sink.Send(models.MotionCommand{Device: id, Kind: models.CmdStop})
			}
		}
		d.emit(models.Event{
			Code:      models.EventInputStale,
			Message:   "gamepad indisponível, dispositivos em parada suave",
			Timestamp: time.Now(),
		})
	}
}

// toggleEmergency arma a parada de emergência, ou a desarma quando já
// armada. O frame de emergência contorna as filas de todos os canais.
func (d *Dispatcher) toggleEmergency() {
	d.mu.Lock()
	engaged := !d.estop
	d.estop = engaged
	d.mu.Unlock()

	if engaged {
		for _, sink := range d.sinks {
			sink.EmergencyStop()
		}
		d.engine.EmergencyStop()
		d.devices.HaltAll()
		d.setMode(models.ModeMove)
		logger.Warn("PARADA DE EMERGÊNCIA armada")
		d.emit(models.Event{
			Code:      models.EventEmergencyStop,
			Message:   "parada de emergência armada pelo operador",
			Timestamp: time.Now(),
		})
		return
	}

	d.devices.ClearHalt()
	logger.Warn("Parada de emergência desarmada")
	d.emit(models.Event{
		Code:      models.EventEmergencyCleared,
		Message:   "parada de emergência desarmada pelo operador",
		Timestamp: time.Now(),
	})
}

// handleModeEdges trata A (espaço articular), B (espaço cartesiano) e o
// acorde Back+A (alterna Move/Train)
func (d *Dispatcher) handleModeEdges(snap models.ControllerSnapshot) {
	back := d.backHeld(snap)

	if snap.JustPressed.Has(models.ButtonA) {
		if back {
			d.markChord()
			d.toggleTrainMode()
		} else {
			d.setSpace(models.SpaceJoint)
		}
	}
	if snap.JustPressed.Has(models.ButtonB) && !back {
		d.setSpace(models.SpaceCartesian)
	}
}

func (d *Dispatcher) toggleTrainMode() {
	if d.currentMode() == models.ModeMove {
		d.setMode(models.ModeTrain)
		d.engine.EnterTrain(d.currentSelector())
		return
	}
	d.setMode(models.ModeMove)
	d.engine.ExitTrain()
}

// handleChordEdges trata as operações de trajetória, todas acordes com
// Back pressionado: X captura, Y remove o último, B alterna playback,
// D-pad cima alterna loop, D-pad baixo limpa, D-pad esquerda encerra o
// playback, LB grava, RB recarrega
func (d *Dispatcher) handleChordEdges(snap models.ControllerSnapshot) {
	if !d.backHeld(snap) {
		return
	}

	chords := []struct {
		button models.Button
		action func() error
	}{
		{models.ButtonX, d.captureWaypoint},
		{models.ButtonY, d.engine.DeleteLast},
		{models.ButtonB, d.togglePlayback},
		{models.ButtonDPadUp, func() error { d.engine.ToggleLoop(); return nil }},
		{models.ButtonDPadDown, func() error { return d.engine.Clear(d.currentSelector()) }},
		{models.ButtonDPadLeft, d.stopPlayback},
		{models.ButtonLB, d.saveCurrent},
		{models.ButtonRB, d.reloadLast},
	}

	for _, chord := range chords {
		if snap.JustPressed.Has(chord.button) {
			d.markChord()
			if err := chord.action(); err != nil {
				d.reportPathwayError(err)
			}
		}
	}
}

// handleSelectorEdge cicla o seletor R1 -> R2 -> Both na soltura de Back,
// desde que Back não tenha servido de modificador de acorde
func (d *Dispatcher) handleSelectorEdge(snap models.ControllerSnapshot) {
	if snap.JustPressed.Has(models.ButtonBack) {
		d.chordUsed = false
	}
	if !snap.JustReleased.Has(models.ButtonBack) {
		return
	}
	if d.chordUsed {
		d.chordUsed = false
		return
	}

	d.mu.Lock()
	d.selector = d.selector.Cycle()
	sel := d.selector
	d.mu.Unlock()
	logger.Infof("Seletor de braços: %s", sel)
}

// captureWaypoint congela as poses correntes dos braços selecionados e a
// posição do alimentador em um novo waypoint
func (d *Dispatcher) captureWaypoint() error {
	sel := d.currentSelector()
	wp := models.Waypoint{}
	if sel.Includes(models.DeviceRobot1) {
		pose := d.devices.RobotPose(models.DeviceRobot1)
		wp.R1 = &pose
	}
	if sel.Includes(models.DeviceRobot2) {
		pose := d.devices.RobotPose(models.DeviceRobot2)
		wp.R2 = &pose
	}
	feeder := d.devices.FeederPosition()
	wp.Feeder = &feeder

	return d.engine.Capture(wp, sel)
}

func (d *Dispatcher) togglePlayback() error {
	if d.currentMode() != models.ModeTrain {
		return pathway.ErrNotRecording
	}
	return d.engine.TogglePlayback()
}

// stopPlayback encerra a reprodução, devolvendo o motor para Recording,
// e descarta o movimento ainda não transmitido aos dispositivos
func (d *Dispatcher) stopPlayback() error {
	state := d.engine.State()
	if state != models.PathwayPlaybackRunning && state != models.PathwayPlaybackPaused {
		return nil
	}
	d.engine.StopPlayback()
	for _, sink := range d.sinks {
		sink.ClearPending()
	}
	return nil
}

// saveCurrent grava a trajetória sob o último nome da sessão e retém o
// nome efetivo, inclusive o autogerado, para o recarregamento
func (d *Dispatcher) saveCurrent() error {
	if err := d.engine.Save(d.currentLastName()); err != nil {
		return err
	}
	d.setLastName(d.engine.Snapshot().Name)
	return nil
}

func (d *Dispatcher) reloadLast() error {
	name := d.currentLastName()
	if name == "" {
		return errors.New("nenhuma trajetória gravada ou carregada nesta sessão")
	}
	return d.engine.Load(name)
}

// advancePlayback avança o cursor e emite alvos absolutos aos canais;
// a entrada manual é ignorada durante a reprodução
func (d *Dispatcher) advancePlayback(dt time.Duration) {
	target, ok := d.engine.Advance(dt)
	if !ok {
		return
	}

	if target.R1 != nil {
		d.sendAbsolute(models.DeviceRobot1, *target.R1)
	}
	if target.R2 != nil {
		d.sendAbsolute(models.DeviceRobot2, *target.R2)
	}
	if target.Feeder != nil {
		current := d.devices.FeederPosition()
		delta := *target.Feeder - current
		if math.Abs(delta) > 1e-6 {
			d.devices.SetFeederPosition(*target.Feeder)
			d.forward(models.MotionCommand{
				Device: models.DeviceFeeder,
				Kind:   models.CmdFeederDelta,
				Scalar: delta,
				Speed:  d.devices.Speed(models.DeviceFeeder),
			})
		}
	}
}

func (d *Dispatcher) sendAbsolute(id models.DeviceID, pose models.RobotPose) {
	if d.sinkStatus(id) != models.StatusConnected {
		return
	}
	d.devices.SetRobotPose(id, pose)
	d.forward(models.MotionCommand{
		Device: id,
		Kind:   models.CmdAbsolute,
		Pose:   &pose,
		Speed:  d.devices.Speed(id),
	})
}

// applyManualMotion roda o mapeador e aplica cada comando ao estado do
// dispositivo antes de encaminhá-lo ao canal correspondente
func (d *Dispatcher) applyManualMotion(snap models.ControllerSnapshot) {
	d.mu.RLock()
	space := d.space
	sel := d.selector
	d.mu.RUnlock()

	cmds := d.mapper.Map(snap, space, sel, d.devices)
	for _, cmd := range cmds {
		if d.sinkStatus(cmd.Device) != models.StatusConnected {
			// Dispositivo fora do ar: nem estado nem transmissão
			continue
		}
		switch cmd.Kind {
		case models.CmdJointDelta:
			d.devices.ApplyJointDelta(cmd.Device, cmd.Delta)
			pose := d.devices.RobotPose(cmd.Device)
			cmd.Pose = &pose
		case models.CmdCartesianDelta:
			d.devices.ApplyCartesianDelta(cmd.Device, cmd.Delta)
		case models.CmdTrackDelta:
			d.devices.ApplyTrackDelta(cmd.Scalar, sel)
		case models.CmdFeederDelta:
			d.devices.ApplyFeederDelta(cmd.Scalar)
		}
		d.forward(cmd)
	}
}

// forward entrega o comando ao canal do dispositivo, transformando fila
// cheia em evento em vez de erro fatal
func (d *Dispatcher) forward(cmd models.MotionCommand) {
	sink, ok := d.sinks[cmd.Device]
	if !ok {
		return
	}
	if err := sink.Send(cmd); err != nil {
		if errors.Is(err, transport.ErrQueueFull) {
			d.emit(models.Event{
				Code:      models.EventQueueFull,
				Message:   "fila de envio cheia, comando descartado",
				Device:    cmd.Device,
				Timestamp: time.Now(),
			})
			return
		}
		logger.Errorf("Erro ao encaminhar comando para %s: %v", cmd.Device, err)
	}
}

// HandleDeviceStatus recebe transições de estado dos canais de
// transporte e as reflete no registro de dispositivos
func (d *Dispatcher) HandleDeviceStatus(id models.DeviceID, status models.ConnectionStatus) {
	d.devices.SetStatus(id, status)
	if status == models.StatusDisconnected {
		d.emit(models.Event{
			Code:      models.EventTransportTimeout,
			Message:   "janela de prova de vida expirada",
			Device:    id,
			Timestamp: time.Now(),
		})
	}
}

// HandleDeviceFeedback entrega uma linha de posição ao laço de controle;
// a aplicação ao estado acontece no início do próximo tick
func (d *Dispatcher) HandleDeviceFeedback(id models.DeviceID, line string) {
	select {
	case d.feedback <- feedbackLine{id: id, line: line}:
	default:
		// Feedback é melhor-esforço; o próximo GP reenvia a posição
	}
}

// Request encaminha uma operação de trajetória pedida por uma superfície
// externa; a aplicação acontece na goroutine do laço
func (d *Dispatcher) Request(op, name string) error {
	select {
	case d.requests <- request{op: op, name: name}:
		return nil
	default:
		return errors.New("fila de requisições cheia")
	}
}

// reportPathwayError converte os erros do motor de trajetórias nos
// eventos da taxonomia; nenhum deles derruba o laço
func (d *Dispatcher) reportPathwayError(err error) {
	code := models.EventPersistenceFailure
	switch {
	case errors.Is(err, pathway.ErrModeMismatch):
		code = models.EventModeMismatch
	case errors.Is(err, pathway.ErrEmptyPathway):
		code = models.EventEmptyPathway
	case errors.Is(err, pathway.ErrNotRecording), errors.Is(err, pathway.ErrPlaybackActive), errors.Is(err, pathway.ErrStoreBusy):
		logger.Warnf("Operação de trajetória rejeitada: %v", err)
		return
	}
	logger.Warnf("Operação de trajetória rejeitada: %v", err)
	d.emit(models.Event{
		Code:      code,
		Message:   err.Error(),
		Timestamp: time.Now(),
	})
}

func (d *Dispatcher) publishSnapshot() {
	d.mu.Lock()
	d.tickCount++
	d.mu.Unlock()

	if d.onSnapshot != nil {
		d.onSnapshot(d.Snapshot())
	}
}

// Snapshot devolve o retrato somente leitura completo da sessão
func (d *Dispatcher) Snapshot() models.SessionSnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return models.SessionSnapshot{
		Timestamp:     time.Now(),
		Mode:          d.mode.String(),
		Space:         d.space.String(),
		Selector:      d.selector.String(),
		EmergencyStop: d.estop,
		InputStale:    d.inputStale,
		Devices:       d.devices.Snapshot(),
		Pathway:       d.engine.Snapshot(),
		Tick:          d.tickCount,
	}
}

func (d *Dispatcher) emit(ev models.Event) {
	if d.onEvent != nil {
		d.onEvent(ev)
	}
}

func (d *Dispatcher) sinkStatus(id models.DeviceID) models.ConnectionStatus {
	sink, ok := d.sinks[id]
	if !ok {
		return models.StatusDisconnected
	}
	return sink.Status()
}

func (d *Dispatcher) backHeld(snap models.ControllerSnapshot) bool {
	return snap.Held.Has(models.ButtonBack)
}

func (d *Dispatcher) markChord() {
	d.chordUsed = true
}

func (d *Dispatcher) isEStopped() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.estop
}

func (d *Dispatcher) currentMode() models.SessionMode {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.mode
}

func (d *Dispatcher) setMode(mode models.SessionMode) {
	d.mu.Lock()
	if d.mode != mode {
		logger.Infof("Modo de sessão: %s", mode)
	}
	d.mode = mode
	d.mu.Unlock()
}

func (d *Dispatcher) setSpace(space models.MotionSpace) {
	d.mu.Lock()
	if d.space != space {
		logger.Infof("Espaço de movimento: %s", space)
	}
	d.space = space
	d.mu.Unlock()
}

func (d *Dispatcher) currentSelector() models.RobotSelector {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.selector
}

func (d *Dispatcher) currentLastName() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastName
}

func (d *Dispatcher) setLastName(name string) {
	d.mu.Lock()
	d.lastName = name
	d.mu.Unlock()
}
