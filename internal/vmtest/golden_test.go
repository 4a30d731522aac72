package vmtest

import (
	"path/filepath"
	"testing"
)

// TestGoldenScripts runs every .ember file in testdata against a fresh VM and
// diffs its printed output against the matching .golden file. Run with
// -test.update-golden after changing a script to regenerate its golden file.
func TestGoldenScripts(t *testing.T) {
	for _, dent := range SourceFiles(t, "testdata", ".ember") {
		dent := dent
		t.Run(dent.Name(), func(t *testing.T) {
			path := filepath.Join("testdata", dent.Name())
			got := Run(t, path)
			DiffGolden(t, path, got)
		})
	}
}
