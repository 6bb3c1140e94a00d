package plc

import (
	"testing"

	"teleop_go/internal/models"
)

func TestEncodeSafetyBlock(t *testing.T) {
	state := models.SessionSnapshot{
		EmergencyStop: true,
		InputStale:    false,
		Pathway: models.PathwaySnapshot{
			State:         models.PathwayPlaybackRunning.String(),
			WaypointCount: 300,
		},
		Devices: map[models.DeviceID]models.DeviceSnapshot{
			models.DeviceRobot1: {Status: models.StatusConnected},
			models.DeviceRobot2: {Status: models.StatusDisconnected},
			models.DeviceTrack:  {Status: models.StatusFaulted},
			models.DeviceFeeder: {Status: models.StatusConnected},
		},
	}

	buf := encodeSafetyBlock(state)
	if len(buf) != safetyBlockSize {
		t.Fatalf("tamanho = %d, esperado %d", len(buf), safetyBlockSize)
	}

	// bit0 estop armado, bit1 gamepad ok, bit2 playback rodando
	if buf[0] != 0b101 {
		t.Errorf("flags = %08b, esperado 00000101", buf[0])
	}
	want := []byte{0, 1, 2, 0}
	for i, code := range want {
		if buf[1+i] != code {
			t.Errorf("dispositivo %d: código = %d, esperado %d", i, buf[1+i], code)
		}
	}
	if got := int(buf[6])<<8 | int(buf[7]); got != 300 {
		t.Errorf("waypoints = %d, esperado 300", got)
	}
}

func TestEncodeSafetyBlockClampsCount(t *testing.T) {
	state := models.SessionSnapshot{
		Pathway: models.PathwaySnapshot{WaypointCount: 1 << 20},
		Devices: map[models.DeviceID]models.DeviceSnapshot{},
	}
	buf := encodeSafetyBlock(state)
	if got := int(buf[6])<<8 | int(buf[7]); got != 0xFFFF {
		t.Errorf("waypoints = %d, esperado saturação em 0xFFFF", got)
	}
}
