package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinifyCSS(t *testing.T) {
	in := "/* badge colors */\n.badge {\n  color: red;\n  padding: 0 4px;\n}\n.a > .b { margin: 0; }\n"

	assert.Equal(t, ".badge{color:red;padding:0 4px}.a>.b{margin:0}", minifyCSS(in))
}

func TestMinifyJSKeepsStatementsAndURLs(t *testing.T) {
	in := "(function () {\n  // setup\n  var u = 'https://example.org/x';\n  /* block\n     comment */\n  go(u);\n})();\n"

	assert.Equal(t, "(function () {\nvar u = 'https://example.org/x';\ngo(u);\n})();", minifyJS(in))
}

func TestMinifyFileWritesSibling(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "app.css")
	require.NoError(t, os.WriteFile(src, []byte("body { margin: 0; }"), 0o644))

	require.NoError(t, minifyFile(src))

	out, err := os.ReadFile(filepath.Join(dir, "app.min.css"))
	require.NoError(t, err)
	assert.Equal(t, "body{margin:0}", string(out))
	assert.Error(t, minifyFile(filepath.Join(dir, "app.txt")))
}
