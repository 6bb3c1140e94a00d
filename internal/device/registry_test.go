package device

import (
	"testing"

	"teleop_go/internal/models"
)

func TestRegistryDefaults(t *testing.T) {
	r := NewRegistry()
	for _, id := range models.AllDevices() {
		if got := r.Status(id); got != models.StatusDisconnected {
			t.Errorf("%s: status inicial = %s, esperado disconnected", id, got)
		}
		if got := r.Speed(id); got != 1.0 {
			t.Errorf("%s: escala inicial = %v, esperado 1.0", id, got)
		}
	}
}

func TestApplyTrackDeltaMirrorsJ7(t *testing.T) {
	r := NewRegistry()

	r.ApplyTrackDelta(25, models.SelectRobot1)
	if got := r.RobotPose(models.DeviceRobot1).J7; got != 25 {
		t.Errorf("r1.J7 = %v, esperado 25", got)
	}
	if got := r.RobotPose(models.DeviceRobot2).J7; got != 0 {
		t.Errorf("r2.J7 = %v, esperado 0 (não selecionado)", got)
	}

	r.ApplyTrackDelta(10, models.SelectBoth)
	if got := r.RobotPose(models.DeviceRobot1).J7; got != 35 {
		t.Errorf("r1.J7 = %v, esperado 35", got)
	}
	if got := r.RobotPose(models.DeviceRobot2).J7; got != 10 {
		t.Errorf("r2.J7 = %v, esperado 10", got)
	}
	if got := r.Snapshot()[models.DeviceTrack].Position; got != 35 {
		t.Errorf("trilho = %v, esperado 35", got)
	}
}

func TestAdjustSpeedClamped(t *testing.T) {
	r := NewRegistry()

	for i := 0; i < 30; i++ {
		r.AdjustSpeed(models.SelectBoth, 0.1)
	}
	if got := r.Speed(models.DeviceRobot1); got != MaxSpeedScale {
		t.Errorf("escala = %v, esperado teto %v", got, MaxSpeedScale)
	}

	for i := 0; i < 60; i++ {
		r.AdjustSpeed(models.SelectBoth, -0.1)
	}
	if got := r.Speed(models.DeviceFeeder); got != MinSpeedScale {
		t.Errorf("escala = %v, esperado piso %v", got, MinSpeedScale)
	}
}

func TestAdjustSpeedRespectsSelector(t *testing.T) {
	r := NewRegistry()
	r.AdjustSpeed(models.SelectRobot2, 0.5)
	if got := r.Speed(models.DeviceRobot1); got != 1.0 {
		t.Errorf("r1 = %v, esperado 1.0 (não selecionado)", got)
	}
	if got := r.Speed(models.DeviceRobot2); got != 1.5 {
		t.Errorf("r2 = %v, esperado 1.5", got)
	}
	// Trilho e alimentador acompanham sempre
	if got := r.Speed(models.DeviceTrack); got != 1.5 {
		t.Errorf("trilho = %v, esperado 1.5", got)
	}
}

func TestHaltAndClear(t *testing.T) {
	r := NewRegistry()
	r.HaltAll()
	for id, snap := range r.Snapshot() {
		if !snap.Halted {
			t.Errorf("%s deveria estar parado", id)
		}
	}
	r.ClearHalt()
	for id, snap := range r.Snapshot() {
		if snap.Halted {
			t.Errorf("%s deveria estar liberado", id)
		}
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	r := NewRegistry()
	snap := r.Snapshot()
	snap[models.DeviceRobot1].Robot.Joints[0] = 99

	if got := r.RobotPose(models.DeviceRobot1).Joints[0]; got != 0 {
		t.Errorf("mutação do snapshot vazou para o registro: J1 = %v", got)
	}
}
