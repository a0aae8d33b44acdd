// Package validate checks launch preset files in a directory and prints a
// report. Each file must parse as YAML or JSON and describe a usable rocket:
//   - a non-empty name
//   - finite numbers in every rocket_state field
//   - positive mass, and fuel and thrust that are not negative
package validate

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wricardo/mcp-training/rocketflight/flight/presets"
	"github.com/wricardo/mcp-training/rocketflight/flight/service"
)

// Result captures the outcome of validating a single file.
// Info is only filled for valid files.
type Result struct {
	File   string
	Valid  bool
	Errors []string
	Info   []string
}

// File loads and validates a single preset file
func File(path string) Result {
	result := Result{File: filepath.Base(path), Valid: true}

	preset, err := presets.LoadFile(path)
	if err != nil {
		result.Valid = false
		result.Errors = problems(err)
		return result
	}

	rs := preset.RocketState
	result.Info = append(result.Info,
		fmt.Sprintf("✓ Name: %s", preset.Name),
		fmt.Sprintf("✓ Position: (%g, %g)", rs.X, rs.Y),
		fmt.Sprintf("✓ Velocity: (%g, %g)", rs.Vx, rs.Vy),
		fmt.Sprintf("✓ Fuel: %g", rs.Fuel),
		fmt.Sprintf("✓ Mass: %g", rs.Mass),
		fmt.Sprintf("✓ Thrust: %g", rs.Thrust),
	)
	if rs.Thrust > 0 && rs.Fuel == 0 {
		result.Info = append(result.Info, "! Thrust is set but the tank is empty")
	}
	return result
}

// Dir validates every preset file in dir, sorted by file name
func Dir(dir string) ([]Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read preset directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml", ".json":
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	results := make([]Result, 0, len(files))
	for _, name := range files {
		results = append(results, File(filepath.Join(dir, name)))
	}
	return results, nil
}

// WriteReport prints results to w and reports whether every file is valid
func WriteReport(w io.Writer, results []Result) bool {
	allValid := true
	for _, result := range results {
		fmt.Fprintf(w, "\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Fprintln(w, "✅ VALID")
			for _, info := range result.Info {
				fmt.Fprintln(w, "  "+info)
			}
			continue
		}

		allValid = false
		fmt.Fprintln(w, "❌ INVALID")
		for _, problem := range result.Errors {
			fmt.Fprintln(w, "  ❌ "+problem)
		}
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 40))
	switch {
	case len(results) == 0:
		fmt.Fprintln(w, "No preset files found")
	case allValid:
		fmt.Fprintln(w, "✅ All presets are valid!")
	default:
		fmt.Fprintln(w, "❌ Some presets have errors")
	}
	return allValid
}

// problems splits a preset validation error into one line per problem
func problems(err error) []string {
	if errors.Is(err, service.ErrPresetNotFound) {
		return []string{"File not found"}
	}
	if !errors.Is(err, presets.ErrInvalidPreset) {
		return []string{err.Error()}
	}

	msg := err.Error()
	if i := strings.Index(msg, presets.ErrInvalidPreset.Error()+": "); i >= 0 {
		msg = msg[i+len(presets.ErrInvalidPreset.Error())+2:]
	}
	return strings.Split(msg, "; ")
}
