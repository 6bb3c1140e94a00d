package pathway

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"teleop_go/internal/models"
	"teleop_go/pkg/logger"
	"teleop_go/pkg/utils"
)

var (
	// ErrModeMismatch indica captura com seletor diferente do robot_mode
	ErrModeMismatch = errors.New("seletor não corresponde ao robot_mode da trajetória")
	// ErrEmptyPathway indica tentativa de reproduzir trajetória vazia
	ErrEmptyPathway = errors.New("trajetória sem waypoints")
	// ErrNotRecording indica operação de gravação fora do estado Recording
	ErrNotRecording = errors.New("motor de trajetórias não está gravando")
	// ErrPlaybackActive indica operação incompatível com playback em curso
	ErrPlaybackActive = errors.New("playback em andamento")
	// ErrStoreBusy indica gravação ou carga de arquivo ainda pendente
	ErrStoreBusy = errors.New("operação de persistência pendente")
)

// playbackRun é o cursor de reprodução sobre uma cópia imutável dos
// waypoints; o original continua editável depois do playback
type playbackRun struct {
	waypoints []models.Waypoint
	cursor    int
	elapsed   time.Duration
}

// Engine é a máquina de estados de gravação e reprodução de trajetórias.
// Todas as transições acontecem na goroutine do dispatcher; o mutex
// protege apenas leitores de snapshot e a conclusão assíncrona de I/O.
type Engine struct {
	mu      sync.RWMutex
	state   models.PathwayState
	pathway models.Pathway
	run     *playbackRun
	ioBusy  bool

	store      *Store
	segmentDur time.Duration
	onEvent    func(models.Event)
}

// NewEngine cria o motor em Idle com uma trajetória vazia
func NewEngine(store *Store, segmentDur time.Duration, onEvent func(models.Event)) *Engine {
	if onEvent == nil {
		onEvent = func(models.Event) {}
	}
	return &Engine{
		state:      models.PathwayIdle,
		pathway:    models.Pathway{RobotMode: models.SelectBoth.String(), Created: time.Now()},
		store:      store,
		segmentDur: segmentDur,
		onEvent:    onEvent,
	}
}

// State devolve o estado corrente do motor
func (e *Engine) State() models.PathwayState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// EnterTrain passa de Idle para Recording. Se ainda não há waypoints, a
// trajetória adota o seletor corrente como robot_mode.
func (e *Engine) EnterTrain(sel models.RobotSelector) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != models.PathwayIdle {
		return
	}
	if len(e.pathway.Waypoints) == 0 {
		e.pathway.RobotMode = sel.String()
		e.pathway.Created = time.Now()
	}
	e.state = models.PathwayRecording
	logger.Infof("Gravação de trajetória iniciada (robot_mode=%s)", e.pathway.RobotMode)
}

// ExitTrain volta para Idle a partir de qualquer estado de treino,
// descartando o cursor de playback mas preservando os waypoints
func (e *Engine) ExitTrain() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == models.PathwayIdle {
		return
	}
	e.state = models.PathwayIdle
	e.run = nil
	logger.Info("Gravação de trajetória encerrada")
}

// Capture acrescenta um waypoint à trajetória em gravação. O seletor do
// momento da captura deve coincidir com o robot_mode gravado.
func (e *Engine) Capture(wp models.Waypoint, sel models.RobotSelector) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != models.PathwayRecording {
		return ErrNotRecording
	}
	if sel.String() != e.pathway.RobotMode {
		return fmt.Errorf("%w: seletor=%s robot_mode=%s", ErrModeMismatch, sel, e.pathway.RobotMode)
	}
	e.pathway.Waypoints = append(e.pathway.Waypoints, wp.Clone())
	logger.Debugf("Waypoint %d capturado", len(e.pathway.Waypoints))
	return nil
}

// DeleteLast remove o waypoint mais recente; sem efeito quando vazio
func (e *Engine) DeleteLast() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != models.PathwayRecording {
		return ErrNotRecording
	}
	if n := len(e.pathway.Waypoints); n > 0 {
		e.pathway.Waypoints = e.pathway.Waypoints[:n-1]
		logger.Debugf("Último waypoint removido, restam %d", n-1)
	}
	return nil
}

// Clear descarta todos os waypoints e adota o seletor corrente como novo
// robot_mode. Válido em Recording e Idle.
func (e *Engine) Clear(sel models.RobotSelector) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == models.PathwayPlaybackRunning || e.state == models.PathwayPlaybackPaused {
		return ErrPlaybackActive
	}
	e.pathway.Waypoints = nil
	e.pathway.RobotMode = sel.String()
	e.pathway.Created = time.Now()
	logger.Info("Trajetória limpa")
	return nil
}

// ToggleLoop inverte o flag de repetição contínua
func (e *Engine) ToggleLoop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pathway.Loop = !e.pathway.Loop
	logger.Infof("Loop de playback: %v", e.pathway.Loop)
}

// SetName define o nome usado na próxima gravação em disco
func (e *Engine) SetName(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pathway.Name = name
}

// TogglePlayback alterna entre gravação e reprodução:
// Recording -> PlaybackRunning (rejeitado se vazio), PlaybackRunning ->
// PlaybackPaused (parada no ponto interpolado), PlaybackPaused ->
// PlaybackRunning (retoma do cursor).
func (e *Engine) TogglePlayback() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case models.PathwayRecording:
		if len(e.pathway.Waypoints) == 0 {
			return ErrEmptyPathway
		}
		wps := make([]models.Waypoint, len(e.pathway.Waypoints))
		for i, wp := range e.pathway.Waypoints {
			wps[i] = wp.Clone()
		}
		e.run = &playbackRun{waypoints: wps}
		e.state = models.PathwayPlaybackRunning
		logger.Infof("Playback iniciado com %d waypoints (loop=%v)", len(wps), e.pathway.Loop)
	case models.PathwayPlaybackRunning:
		e.state = models.PathwayPlaybackPaused
		logger.Info("Playback pausado")
	case models.PathwayPlaybackPaused:
		// Pausa no meio do caminho retoma do cursor; retomada depois da
		// conclusão reinicia do primeiro waypoint
		if e.run != nil && e.run.cursor >= len(e.run.waypoints)-1 {
			e.run.cursor = 0
			e.run.elapsed = 0
		}
		e.state = models.PathwayPlaybackRunning
		logger.Info("Playback retomado")
	default:
		return ErrNotRecording
	}
	return nil
}

// StopPlayback encerra a reprodução e volta para Recording
func (e *Engine) StopPlayback() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != models.PathwayPlaybackRunning && e.state != models.PathwayPlaybackPaused {
		return
	}
	e.state = models.PathwayRecording
	e.run = nil
	logger.Info("Playback encerrado")
}

// EmergencyStop derruba o motor para Idle e descarta o cursor
func (e *Engine) EmergencyStop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = models.PathwayIdle
	e.run = nil
}

// Advance avança o cursor de reprodução em dt e devolve o alvo
// interpolado do tick. Ao alcançar o último waypoint sem loop, o motor
// passa sozinho para PlaybackPaused sobre o waypoint final.
func (e *Engine) Advance(dt time.Duration) (models.Waypoint, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != models.PathwayPlaybackRunning || e.run == nil {
		return models.Waypoint{}, false
	}

	run := e.run
	last := len(run.waypoints) - 1
	if last == 0 {
		e.state = models.PathwayPlaybackPaused
		logger.Info("Playback concluído (waypoint único)")
		return run.waypoints[0].Clone(), true
	}

	run.elapsed += dt
	for run.elapsed >= e.segmentDur {
		run.elapsed -= e.segmentDur
		run.cursor++
		if run.cursor >= last {
			if e.pathway.Loop {
				run.cursor = 0
				continue
			}
			run.cursor = last
			run.elapsed = 0
			e.state = models.PathwayPlaybackPaused
			logger.Info("Playback concluído")
			return run.waypoints[last].Clone(), true
		}
	}

	// O cursor nunca passa do penúltimo waypoint com o motor rodando
	if run.cursor >= last {
		return run.waypoints[last].Clone(), true
	}

	t := float64(run.elapsed) / float64(e.segmentDur)
	return lerpWaypoint(run.waypoints[run.cursor], run.waypoints[run.cursor+1], t), true
}

// Save grava a trajetória corrente em disco sob o nome indicado. A
// escrita roda fora da goroutine de controle; o resultado chega como
// evento pathway_saved ou persistence_failure.
func (e *Engine) Save(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == models.PathwayPlaybackRunning || e.state == models.PathwayPlaybackPaused {
		return ErrPlaybackActive
	}
	if e.ioBusy {
		return ErrStoreBusy
	}
	if len(e.pathway.Waypoints) == 0 {
		return ErrEmptyPathway
	}
	if name != "" {
		e.pathway.Name = name
	}
	if e.pathway.Name == "" {
		e.pathway.Name = "trajetoria_" + time.Now().Format("20060102_150405")
	}

	dup := e.pathway
	dup.Waypoints = make([]models.Waypoint, len(e.pathway.Waypoints))
	for i, wp := range e.pathway.Waypoints {
		dup.Waypoints[i] = wp.Clone()
	}
	e.ioBusy = true

	go func() {
		err := e.store.Save(&dup)
		e.finishIO(err, models.Event{
			Code:      models.EventPathwaySaved,
			Message:   fmt.Sprintf("trajetória %q gravada com %d waypoints", dup.Name, len(dup.Waypoints)),
			Timestamp: time.Now(),
		})
	}()
	return nil
}

// Load substitui a trajetória corrente pela gravada sob o nome indicado.
// Rejeitado durante playback; a leitura roda fora da goroutine de
// controle e o documento só é adotado depois de validado.
func (e *Engine) Load(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == models.PathwayPlaybackRunning || e.state == models.PathwayPlaybackPaused {
		return ErrPlaybackActive
	}
	if e.ioBusy {
		return ErrStoreBusy
	}
	e.ioBusy = true

	go func() {
		p, err := e.store.Load(name)
		if err != nil {
			e.finishIO(err, models.Event{})
			return
		}
		e.mu.Lock()
		e.pathway = *p
		e.mu.Unlock()
		e.finishIO(nil, models.Event{
			Code:      models.EventPathwayLoaded,
			Message:   fmt.Sprintf("trajetória %q carregada com %d waypoints", p.Name, len(p.Waypoints)),
			Timestamp: time.Now(),
		})
	}()
	return nil
}

// finishIO conclui uma operação assíncrona de persistência. O evento é
// emitido antes de liberar o flag de ocupado, de modo que quem esperar a
// conclusão já observe o resultado.
func (e *Engine) finishIO(err error, ok models.Event) {
	if err != nil {
		logger.Errorf("Falha de persistência de trajetória: %v", err)
		e.onEvent(models.Event{
			Code:      models.EventPersistenceFailure,
			Message:   err.Error(),
			Timestamp: time.Now(),
		})
	} else {
		logger.Info(ok.Message)
		e.onEvent(ok)
	}

	e.mu.Lock()
	e.ioBusy = false
	e.mu.Unlock()
}

// WaitIdle bloqueia até nenhuma operação de persistência estar pendente;
// usado no shutdown e nos testes
func (e *Engine) WaitIdle() {
	for {
		e.mu.RLock()
		busy := e.ioBusy
		e.mu.RUnlock()
		if !busy {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

// Snapshot devolve a visão somente leitura do motor
func (e *Engine) Snapshot() models.PathwaySnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	snap := models.PathwaySnapshot{
		State:         e.state.String(),
		Name:          e.pathway.Name,
		RobotMode:     e.pathway.RobotMode,
		WaypointCount: len(e.pathway.Waypoints),
		Loop:          e.pathway.Loop,
		Busy:          e.ioBusy,
	}
	if e.run != nil {
		snap.Cursor = e.run.cursor
	}
	return snap
}

// lerpWaypoint interpola linearmente todos os campos numéricos presentes
// em ambos os waypoints
func lerpWaypoint(a, b models.Waypoint, t float64) models.Waypoint {
	out := models.Waypoint{}
	if a.R1 != nil && b.R1 != nil {
		out.R1 = lerpPose(a.R1, b.R1, t)
	}
	if a.R2 != nil && b.R2 != nil {
		out.R2 = lerpPose(a.R2, b.R2, t)
	}
	if a.Feeder != nil && b.Feeder != nil {
		f := utils.Lerp(*a.Feeder, *b.Feeder, t)
		out.Feeder = &f
	}
	return out
}

func lerpPose(a, b *models.RobotPose, t float64) *models.RobotPose {
	out := &models.RobotPose{J7: utils.Lerp(a.J7, b.J7, t)}
	for i := range a.Joints {
		out.Joints[i] = utils.Lerp(a.Joints[i], b.Joints[i], t)
	}
	return out
}
