package directions

import "fmt"

// Instruction renders spoken instruction text from a backend maneuver.
// The backend reports maneuver type, turn modifier, road name and
// roundabout exit number; the prose is built here.
func Instruction(maneuverType, modifier, roadName string, exit int) string {
	switch maneuverType {
	case "depart":
		return onto("Head out", roadName)
	case "arrive":
		switch modifier {
		case "left":
			return "You have arrived. Your destination is on the left"
		case "right":
			return "You have arrived. Your destination is on the right"
		}
		return "You have arrived at your destination"
	case "turn":
		if modifier == "straight" {
			return onto("Continue straight", roadName)
		}
		return onto("Turn "+modifier, roadName)
	case "new name", "continue":
		return onto(withModifier("Continue", modifier), roadName)
	case "merge":
		return onto(withModifier("Merge", modifier), roadName)
	case "on ramp":
		return onto(withModifier("Take the ramp", modifier), roadName)
	case "off ramp":
		return onto(withModifier("Take the exit", modifier), roadName)
	case "fork":
		if modifier == "" {
			return onto("Keep to the fork", roadName)
		}
		return onto("Keep "+modifier+" at the fork", roadName)
	case "end of road":
		if modifier == "" {
			return onto("Continue at the end of the road", roadName)
		}
		return onto("Turn "+modifier+" at the end of the road", roadName)
	case "roundabout", "rotary":
		if exit > 0 {
			return fmt.Sprintf("At the roundabout, take exit %d", exit)
		}
		return "Enter the roundabout"
	case "roundabout turn":
		if modifier != "" {
			return onto("At the roundabout, turn "+modifier, roadName)
		}
		return "At the roundabout, continue"
	case "uturn":
		return onto("Make a U-turn", roadName)
	}
	return onto("Continue", roadName)
}

func withModifier(base, modifier string) string {
	if modifier == "" || modifier == "straight" {
		return base
	}
	return base + " " + modifier
}

func onto(base, roadName string) string {
	if roadName == "" {
		return base
	}
	return base + " onto " + roadName
}
