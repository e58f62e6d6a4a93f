package exercise

import (
	"fmt"
	"strings"
)

var registry = []*variant{
	{
		kind:        ShoulderFlexion,
		name:        "Shoulder Flexion",
		description: "Raise your arm forward and upward, keeping your elbow straight. This improves the range of motion in the shoulder joint.",
		steps: []string{
			"Stand or sit with good posture, arms at your sides.",
			"Slowly raise your {side} arm forward and up.",
			"Keep your elbow straight throughout the movement.",
			"Aim to raise your arm to {target} from your body.",
			"Hold the position briefly, then slowly lower your arm.",
		},
		joints: [3]joint{{part: "hip"}, {part: "shoulder"}, {part: "elbow"}},
		target: 90, tolerance: 15,
	},
	{
		kind:        ShoulderAbduction,
		name:        "Shoulder Abduction",
		description: "Raise your arm out to the side, keeping your elbow straight. This improves shoulder mobility in the frontal plane.",
		steps: []string{
			"Stand with good posture, arms at your sides.",
			"Slowly raise your {side} arm out to the side.",
			"Keep your palm facing down and elbow straight.",
			"Aim to raise your arm to {target} from your body.",
			"Hold briefly, then slowly lower.",
		},
		joints: [3]joint{{part: "shoulder", opposite: true}, {part: "shoulder"}, {part: "elbow"}},
		target: 90, tolerance: 15,
	},
	{
		kind:        ElbowFlexion,
		name:        "Elbow Flexion",
		description: "Bend your elbow, bringing your hand toward your shoulder. This improves elbow mobility and forearm strength.",
		steps: []string{
			"Stand or sit with your arm at your side.",
			"Keep your {side} upper arm still.",
			"Slowly bend your elbow, bringing your hand toward your shoulder.",
			"Aim for {target} of flexion.",
			"Hold briefly at the top, then slowly straighten.",
		},
		joints: [3]joint{{part: "shoulder"}, {part: "elbow"}, {part: "wrist"}},
		target: 140, tolerance: 15,
	},
	{
		kind:        KneeFlexion,
		name:        "Knee Flexion",
		description: "Bend your knee, bringing your heel toward your buttocks. This improves knee mobility and hamstring strength.",
		steps: []string{
			"Stand holding onto a stable surface for balance.",
			"Lift your {side} foot off the ground.",
			"Slowly bend your knee, bringing your heel toward your buttocks.",
			"Aim for {target} of flexion.",
			"Hold briefly, then slowly lower your foot.",
		},
		joints: [3]joint{{part: "hip"}, {part: "knee"}, {part: "ankle"}},
		target: 90, tolerance: 15,
	},
	{
		kind:        HipFlexion,
		name:        "Hip Flexion",
		description: "Raise your thigh forward and upward while standing. This improves hip mobility and core stability.",
		steps: []string{
			"Stand with good posture, holding onto a stable surface.",
			"Slowly raise your {side} knee forward and up.",
			"Keep your back straight, don't lean backward.",
			"Aim to raise your thigh to {target} from vertical.",
			"Hold briefly, then slowly lower.",
		},
		joints: [3]joint{{part: "shoulder"}, {part: "hip"}, {part: "knee"}},
		target: 90, tolerance: 15,
	},
	{
		kind:        HipAbduction,
		name:        "Hip Abduction",
		description: "Move your leg outward, away from your body. This improves hip stability and lateral movement.",
		steps: []string{
			"Stand with good posture, holding onto a stable surface.",
			"Keep your {side} leg straight.",
			"Slowly move your leg outward, away from your body.",
			"Aim for {target} of abduction, toes pointing forward.",
			"Hold briefly, then slowly return to start.",
		},
		joints: [3]joint{{part: "hip", opposite: true}, {part: "hip"}, {part: "knee"}},
		target: 30, tolerance: 10,
	},
}

// Lookup returns the definition registered under name.
func Lookup(name string) (Definition, error) {
	for _, v := range registry {
		if string(v.kind) == name {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownExercise, name, strings.Join(kindStrings(), ", "))
}

// MustLookup is Lookup for known kinds; it panics on an unregistered kind.
func MustLookup(kind Kind) Definition {
	def, err := Lookup(string(kind))
	if err != nil {
		panic(err)
	}
	return def
}

// List returns the registered exercise kinds in a stable order.
func List() []Kind {
	kinds := make([]Kind, len(registry))
	for i, v := range registry {
		kinds[i] = v.kind
	}
	return kinds
}

func kindStrings() []string {
	out := make([]string, len(registry))
	for i, v := range registry {
		out[i] = string(v.kind)
	}
	return out
}
