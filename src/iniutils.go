package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	mgl "github.com/go-gl/mathgl/mgl32"
	"gopkg.in/ini.v1"
)

// SaveINI writes the IniFile to disk, creating the parent directory.
func SaveINI(iniFile *ini.File, filePath string) error {
	if iniFile == nil {
		return fmt.Errorf("iniFile is not initialized")
	}
	// Normalize all true/false to 1/0
	for _, section := range iniFile.Sections() {
		for _, key := range section.Keys() {
			if key.Value() == "true" {
				key.SetValue("1")
			} else if key.Value() == "false" {
				key.SetValue("0")
			}
		}
	}
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return iniFile.SaveTo(filePath)
}

// vec3 converts a parsed "x, y, z" list. Missing components are zero.
func vec3(v []float64) mgl.Vec3 {
	var out mgl.Vec3
	for i := 0; i < len(v) && i < 3; i++ {
		out[i] = float32(v[i])
	}
	return out
}

func formatVec(v []float64) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strings.Join(parts, ", ")
}
