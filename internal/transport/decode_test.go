package transport

import "testing"

func TestParseRobotFeedback(t *testing.T) {
	line := "A10.5B-20.0C30.0D0.0E45.0F-90.0G100.0H200.0I300.0J1.0K2.0L3.0M0N0O0P150.5"

	fb, err := ParseRobotFeedback(line)
	if err != nil {
		t.Fatal(err)
	}

	wantJoints := [6]float64{10.5, -20.0, 30.0, 0.0, 45.0, -90.0}
	if fb.Pose.Joints != wantJoints {
		t.Errorf("juntas = %v, esperado %v", fb.Pose.Joints, wantJoints)
	}
	if fb.Pose.J7 != 150.5 {
		t.Errorf("J7 = %v, esperado 150.5", fb.Pose.J7)
	}
	if fb.Cartesian[0] != 100.0 || fb.Cartesian[5] != 3.0 {
		t.Errorf("pose cartesiana = %v", fb.Cartesian)
	}
}

func TestParseRobotFeedbackPartialLine(t *testing.T) {
	// Firmware antigo sem os campos M-P: J7 assume zero
	fb, err := ParseRobotFeedback("A1.0B2.0C3.0D4.0E5.0F6.0")
	if err != nil {
		t.Fatal(err)
	}
	if fb.Pose.Joints[5] != 6.0 {
		t.Errorf("F = %v, esperado 6.0", fb.Pose.Joints[5])
	}
	if fb.Pose.J7 != 0 {
		t.Errorf("J7 = %v, esperado 0 sem campo P", fb.Pose.J7)
	}
}

func TestParseRobotFeedbackErrors(t *testing.T) {
	for _, line := range []string{"", "   ", "GPOK", "Axx B2"} {
		if _, err := ParseRobotFeedback(line); err == nil {
			t.Errorf("ParseRobotFeedback(%q) deveria falhar", line)
		}
	}
}

func TestParseFeederFeedback(t *testing.T) {
	tests := []struct {
		line    string
		want    float64
		wantErr bool
	}{
		{"POS:42.5", 42.5, false},
		{"POS: 0", 0, false},
		{"POS:-3.25\r", -3.25, false},
		{"OK", 0, true},
		{"POS:abc", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseFeederFeedback(tt.line)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFeederFeedback(%q) erro = %v, wantErr %v", tt.line, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseFeederFeedback(%q) = %v, esperado %v", tt.line, got, tt.want)
		}
	}
}
