package transport

import (
	"strings"
	"testing"

	"teleop_go/internal/models"
)

func TestSpeedConversion(t *testing.T) {
	tests := []struct {
		scale   float64
		percent int
		fw      int
	}{
		{0.1, 5, 1},
		{1.0, 50, 12},
		{2.0, 100, 25},
		{0.0, 1, 1},
		{5.0, 100, 25},
	}
	for _, tt := range tests {
		if got := speedPercent(tt.scale); got != tt.percent {
			t.Errorf("speedPercent(%v) = %d, esperado %d", tt.scale, got, tt.percent)
		}
		if got := firmwareSpeed(tt.scale); got != tt.fw {
			t.Errorf("firmwareSpeed(%v) = %d, esperado %d", tt.scale, got, tt.fw)
		}
	}
}

func TestRobotEncoderAbsoluteMove(t *testing.T) {
	enc := NewRobotEncoder()
	frame, err := enc.Encode(models.MotionCommand{
		Device: models.DeviceRobot1,
		Kind:   models.CmdAbsolute,
		Pose:   &models.RobotPose{Joints: [6]float64{1, -2, 3.5, 0, 90, -45.25}, J7: 120},
		Speed:  1.0,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := "MJA1.000B-2.000C3.500D0.000E90.000F-45.250P120.000S12A10D10"
	if string(frame) != want {
		t.Errorf("frame = %q, esperado %q", frame, want)
	}
}

func TestRobotEncoderJointDeltaRequiresPose(t *testing.T) {
	enc := NewRobotEncoder()
	if _, err := enc.Encode(models.MotionCommand{Kind: models.CmdJointDelta}); err == nil {
		t.Fatal("delta articular sem pose deveria falhar")
	}
}

func TestRobotEncoderCartesianDominantAxis(t *testing.T) {
	enc := NewRobotEncoder()
	tests := []struct {
		name  string
		delta [6]float64
		want  string
	}{
		{"X positivo", [6]float64{0.8, 0.2, 0, 0, 0, 0}, "LC11"},
		{"Z negativo dominante", [6]float64{0.1, 0, -0.9, 0, 0, 0.3}, "LC30"},
		{"Rz positivo", [6]float64{0, 0, 0, 0, 0, 0.5}, "LC61"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := enc.Encode(models.MotionCommand{
				Kind:  models.CmdCartesianDelta,
				Delta: tt.delta,
				Speed: 1.0,
			})
			if err != nil {
				t.Fatal(err)
			}
			if !strings.HasPrefix(string(frame), tt.want) {
				t.Errorf("frame = %q, esperado prefixo %q", frame, tt.want)
			}
		})
	}

	// Delta todo zero não gera frame
	frame, err := enc.Encode(models.MotionCommand{Kind: models.CmdCartesianDelta})
	if err != nil || frame != nil {
		t.Errorf("delta nulo deveria ser silencioso, frame=%q err=%v", frame, err)
	}
}

func TestTrackEncoderDirections(t *testing.T) {
	enc := NewTrackEncoder()

	frame, _ := enc.Encode(models.MotionCommand{Kind: models.CmdTrackDelta, Scalar: 2, Speed: 1})
	if !strings.HasPrefix(string(frame), "LJ71") {
		t.Errorf("avanço = %q, esperado prefixo LJ71", frame)
	}

	frame, _ = enc.Encode(models.MotionCommand{Kind: models.CmdTrackDelta, Scalar: -2, Speed: 1})
	if !strings.HasPrefix(string(frame), "LJ70") {
		t.Errorf("recuo = %q, esperado prefixo LJ70", frame)
	}
}

func TestFeederEncoder(t *testing.T) {
	enc := NewFeederEncoder()

	frame, _ := enc.Encode(models.MotionCommand{Kind: models.CmdFeederDelta, Scalar: 12.5})
	if string(frame) != "F12.50" {
		t.Errorf("avanço = %q, esperado F12.50", frame)
	}

	frame, _ = enc.Encode(models.MotionCommand{Kind: models.CmdFeederDelta, Scalar: -3})
	if string(frame) != "R3.00" {
		t.Errorf("recuo = %q, esperado R3.00", frame)
	}

	if string(enc.EmergencyStop()) != "STOP" {
		t.Errorf("parada de emergência do alimentador deveria ser STOP")
	}
	if string(enc.Heartbeat()) != "POS" {
		t.Errorf("prova de vida do alimentador deveria ser POS")
	}
}

func TestStopFrames(t *testing.T) {
	if got := string(NewRobotEncoder().EmergencyStop()); got != "ES" {
		t.Errorf("ES do braço = %q", got)
	}
	if got := string(NewRobotEncoder().Stop()); got != "S" {
		t.Errorf("S do braço = %q", got)
	}
	if got := string(NewTrackEncoder().EmergencyStop()); got != "ES" {
		t.Errorf("ES do trilho = %q", got)
	}
}
