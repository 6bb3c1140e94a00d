package input

import (
	"testing"

	"teleop_go/internal/models"
)

// fakeSource devolve estados pré-programados em sequência
type fakeSource struct {
	states []RawState
	errs   []error
	calls  int
}

func (f *fakeSource) Poll() (RawState, error) {
	i := f.calls
	if i >= len(f.states) {
		i = len(f.states) - 1
	}
	f.calls++
	if f.errs != nil && f.errs[i] != nil {
		return RawState{}, f.errs[i]
	}
	return f.states[i], nil
}

func TestSamplerDeadzone(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"abaixo do limiar positivo", 0.24, 0},
		{"abaixo do limiar negativo", -0.24, 0},
		{"exatamente no limiar", 0.25, 0.25},
		{"acima do limiar sem reescala", 0.3, 0.3},
		{"valor cheio", 1.0, 1.0},
		{"fora de alcance", 1.7, 1.0},
		{"fora de alcance negativo", -1.7, -1.0},
		{"zero", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{states: []RawState{{LeftX: tt.in, Buttons: models.ButtonSet{}}}}
			s := NewSampler(src, 0.25)
			snap := s.Sample()
			if snap.LeftStick.X != tt.want {
				t.Errorf("LeftStick.X = %v, esperado %v", snap.LeftStick.X, tt.want)
			}
		})
	}
}

func TestSamplerEdgeDetection(t *testing.T) {
	src := &fakeSource{states: []RawState{
		{Buttons: models.ButtonSet{}},
		{Buttons: models.ButtonSet{models.ButtonA: true}},
		{Buttons: models.ButtonSet{models.ButtonA: true}},
		{Buttons: models.ButtonSet{}},
	}}
	s := NewSampler(src, 0.25)

	snap := s.Sample()
	if len(snap.JustPressed) != 0 || len(snap.JustReleased) != 0 {
		t.Fatalf("tick 0: bordas inesperadas %v %v", snap.JustPressed, snap.JustReleased)
	}

	snap = s.Sample()
	if !snap.JustPressed.Has(models.ButtonA) {
		t.Fatal("tick 1: pressão de A não detectada")
	}
	if !snap.Held.Has(models.ButtonA) {
		t.Fatal("tick 1: A deveria constar em Held")
	}

	// Botão mantido: a borda dispara exatamente uma vez
	snap = s.Sample()
	if snap.JustPressed.Has(models.ButtonA) {
		t.Fatal("tick 2: pressão de A repetida com botão mantido")
	}
	if !snap.Held.Has(models.ButtonA) {
		t.Fatal("tick 2: A deveria continuar em Held")
	}

	snap = s.Sample()
	if !snap.JustReleased.Has(models.ButtonA) {
		t.Fatal("tick 3: soltura de A não detectada")
	}
}

func TestSamplerStaleOnDisconnect(t *testing.T) {
	src := &fakeSource{
		states: []RawState{
			{LeftX: 0.8, Buttons: models.ButtonSet{models.ButtonStart: true}},
			{},
			{Buttons: models.ButtonSet{}},
		},
		errs: []error{nil, ErrSourceDisconnected, nil},
	}
	s := NewSampler(src, 0.25)

	s.Sample()

	snap := s.Sample()
	if !snap.Stale {
		t.Fatal("snapshot deveria estar stale após desconexão")
	}
	if snap.LeftStick.X != 0 || len(snap.Held) != 0 {
		t.Fatal("snapshot stale deveria ser todo neutro")
	}
	if len(snap.JustReleased) != 0 {
		t.Fatal("desconexão não deve sintetizar bordas de soltura")
	}

	// Reconexão com botões soltos também não sintetiza bordas
	snap = s.Sample()
	if snap.Stale {
		t.Fatal("snapshot não deveria estar stale após reconexão")
	}
	if len(snap.JustPressed) != 0 || len(snap.JustReleased) != 0 {
		t.Fatalf("reconexão gerou bordas fantasmas: %v %v", snap.JustPressed, snap.JustReleased)
	}
}
