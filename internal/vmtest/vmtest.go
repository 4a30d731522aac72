// Package vmtest provides golden-transcript test helpers for the VM: run a
// script, capture its stdout, and diff it against a checked-in .golden
// file. Adapted from the teacher's internal/filetest, narrowed to the one
// shape Ember's tests need (a script and its printed output).
package vmtest

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/kylelemons/godebug/diff"

	"github.com/emberlang/ember/lang/vm"
)

var updateGoldenFiles = flag.Bool("test.update-golden", false, "If set, overwrites golden files with actual output instead of failing on a mismatch.")

// SourceFiles returns every file in dir with the given extension (leading
// dot optional), sorted by os.ReadDir's default (lexical) order.
func SourceFiles(t *testing.T, dir, ext string) []os.DirEntry {
	t.Helper()

	if ext != "" && ext[0] != '.' {
		ext = "." + ext
	}

	dents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}

	res := make([]os.DirEntry, 0, len(dents))
	for _, dent := range dents {
		if !dent.Type().IsRegular() {
			continue
		}
		if ext != "" && filepath.Ext(dent.Name()) != ext {
			continue
		}
		res = append(res, dent)
	}
	return res
}

// Run compiles and interprets the script at path with a fresh VM, returning
// everything it printed to stdout. A runtime or compile error is appended
// to the captured output rather than failing the test, so golden files can
// assert on expected-error scripts too.
func Run(t *testing.T, path string) string {
	t.Helper()

	src, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	machine := vm.New(&out)
	if err := machine.Interpret(string(src)); err != nil {
		out.WriteString(err.Error())
		out.WriteString("\n")
	}
	return out.String()
}

// DiffGolden validates got against the golden file path+".golden", or
// overwrites it when -test.update-golden is set.
func DiffGolden(t *testing.T, path, got string) {
	t.Helper()

	goldFile := path + ".golden"
	if *updateGoldenFiles {
		if err := os.WriteFile(goldFile, []byte(got), 0o600); err != nil {
			t.Fatal(err)
		}
		return
	}

	wantb, err := os.ReadFile(goldFile)
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	want := string(wantb)
	if patch := diff.Diff(want, got); patch != "" {
		t.Errorf("diff output:\n%s", patch)
	}
}
