// Package presets loads named launch presets for new flights.
//
// A preset is a name, a description and the rocket state a flight starts
// from. Presets are read from YAML (.yaml, .yml) or JSON (.json) files in a
// preset directory. The file name without extension is the preset ID.
//
// A built-in "default" preset always exists and matches the initial state of
// a fresh store: zero kinematics, fuel 100, mass 500, thrust 100. A file
// named default.yaml overrides it.
//
// Usage:
//
//	manager, err := presets.NewManager("presets")
//	if err != nil {
//		return err
//	}
//
//	preset, err := manager.LoadPreset("heavy")
//	infos, err := manager.ListPresets()
//
// Validation:
//
// Every loaded preset must have a name, positive mass, non-negative fuel and
// thrust, and finite values throughout.
package presets
