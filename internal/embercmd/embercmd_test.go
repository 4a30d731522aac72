package embercmd_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mna/mainer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberlang/ember/internal/embercmd"
)

func writeScript(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "script.ember")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestRunFileSuccess(t *testing.T) {
	path := writeScript(t, `print 1 + 2;`)
	var out, errOut bytes.Buffer
	code := embercmd.Run([]string{path}, mainer.Stdio{Stdin: strings.NewReader(""), Stdout: &out, Stderr: &errOut}, "test")

	assert.Equal(t, embercmd.ExitSuccess, code)
	assert.Equal(t, "3\n", out.String())
	assert.Empty(t, errOut.String())
}

func TestRunFileCompileError(t *testing.T) {
	path := writeScript(t, `let = ;`)
	var out, errOut bytes.Buffer
	code := embercmd.Run([]string{path}, mainer.Stdio{Stdin: strings.NewReader(""), Stdout: &out, Stderr: &errOut}, "test")

	assert.Equal(t, embercmd.ExitDataErr, code)
	assert.NotEmpty(t, errOut.String())
}

func TestRunFileRuntimeError(t *testing.T) {
	path := writeScript(t, `x = 1;`)
	var out, errOut bytes.Buffer
	code := embercmd.Run([]string{path}, mainer.Stdio{Stdin: strings.NewReader(""), Stdout: &out, Stderr: &errOut}, "test")

	assert.Equal(t, embercmd.ExitSoftware, code)
	assert.Contains(t, errOut.String(), "Undefined variable 'x'.")
}

func TestRunMissingFile(t *testing.T) {
	var out, errOut bytes.Buffer
	code := embercmd.Run([]string{filepath.Join(t.TempDir(), "missing.ember")}, mainer.Stdio{Stdin: strings.NewReader(""), Stdout: &out, Stderr: &errOut}, "test")

	assert.Equal(t, embercmd.ExitIOErr, code)
}

func TestRunDisassemble(t *testing.T) {
	path := writeScript(t, `print clock();`)
	var out, errOut bytes.Buffer
	code := embercmd.Run([]string{"-d", path}, mainer.Stdio{Stdin: strings.NewReader(""), Stdout: &out, Stderr: &errOut}, "test")

	require.Equal(t, embercmd.ExitSuccess, code)
	assert.Contains(t, out.String(), "== <script> ==")
	assert.Contains(t, out.String(), "OP_GET_GLOBAL")
	assert.Contains(t, out.String(), "'clock' (native)")
	assert.Contains(t, out.String(), "OP_CALL")
}

func TestRunDisassembleRequiresExactlyOnePath(t *testing.T) {
	var out, errOut bytes.Buffer
	code := embercmd.Run([]string{"-d"}, mainer.Stdio{Stdin: strings.NewReader(""), Stdout: &out, Stderr: &errOut}, "test")

	assert.Equal(t, embercmd.ExitUsage, code)
}

func TestRunReplEchoesPrintedOutputAndExitsOnEOF(t *testing.T) {
	var out, errOut bytes.Buffer
	code := embercmd.Run(nil, mainer.Stdio{Stdin: strings.NewReader("print 1 + 1;\n"), Stdout: &out, Stderr: &errOut}, "test")

	assert.Equal(t, embercmd.ExitSuccess, code)
	assert.Contains(t, out.String(), "2\n")
}

func TestRunVersionAndHelp(t *testing.T) {
	var out, errOut bytes.Buffer
	code := embercmd.Run([]string{"-v"}, mainer.Stdio{Stdin: strings.NewReader(""), Stdout: &out, Stderr: &errOut}, "1.2.3")
	assert.Equal(t, embercmd.ExitSuccess, code)
	assert.Contains(t, out.String(), "1.2.3")

	out.Reset()
	code = embercmd.Run([]string{"-h"}, mainer.Stdio{Stdin: strings.NewReader(""), Stdout: &out, Stderr: &errOut}, "1.2.3")
	assert.Equal(t, embercmd.ExitSuccess, code)
	assert.Contains(t, out.String(), "usage:")
}
