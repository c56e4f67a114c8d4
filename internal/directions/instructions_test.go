package directions

import "testing"

func TestInstruction(t *testing.T) {
	tests := []struct {
		name         string
		maneuverType string
		modifier     string
		roadName     string
		exit         int
		expected     string
	}{
		{"depart", "depart", "", "Rue de Rivoli", 0, "Head out onto Rue de Rivoli"},
		{"depart unnamed", "depart", "", "", 0, "Head out"},
		{"arrive", "arrive", "", "", 0, "You have arrived at your destination"},
		{"arrive left", "arrive", "left", "", 0, "You have arrived. Your destination is on the left"},
		{"turn left", "turn", "left", "Rue Saint-Antoine", 0, "Turn left onto Rue Saint-Antoine"},
		{"turn straight", "turn", "straight", "Rue Oberkampf", 0, "Continue straight onto Rue Oberkampf"},
		{"new name", "new name", "slight right", "Boulevard Voltaire", 0, "Continue slight right onto Boulevard Voltaire"},
		{"continue straight", "continue", "straight", "", 0, "Continue"},
		{"merge", "merge", "left", "A4", 0, "Merge left onto A4"},
		{"on ramp", "on ramp", "right", "A86", 0, "Take the ramp right onto A86"},
		{"off ramp", "off ramp", "", "", 0, "Take the exit"},
		{"fork", "fork", "left", "", 0, "Keep left at the fork"},
		{"end of road", "end of road", "right", "Rue de la Roquette", 0, "Turn right at the end of the road onto Rue de la Roquette"},
		{"roundabout with exit", "roundabout", "", "", 2, "At the roundabout, take exit 2"},
		{"roundabout without exit", "roundabout", "", "", 0, "Enter the roundabout"},
		{"rotary", "rotary", "", "", 3, "At the roundabout, take exit 3"},
		{"roundabout turn", "roundabout turn", "left", "Avenue de la République", 0, "At the roundabout, turn left onto Avenue de la République"},
		{"uturn", "uturn", "", "Rue du Chemin Vert", 0, "Make a U-turn onto Rue du Chemin Vert"},
		{"unknown type", "teleport", "", "Rue Amelot", 0, "Continue onto Rue Amelot"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Instruction(tc.maneuverType, tc.modifier, tc.roadName, tc.exit)
			if got != tc.expected {
				t.Errorf("Instruction(%q, %q, %q, %d) = %q, expected %q",
					tc.maneuverType, tc.modifier, tc.roadName, tc.exit, got, tc.expected)
			}
		})
	}
}
