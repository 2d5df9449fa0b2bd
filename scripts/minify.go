package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	blockComment   = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineComment    = regexp.MustCompile(`(?m)^\s*//.*$`)
	whitespace     = regexp.MustCompile(`\s+`)
	cssPunctuation = regexp.MustCompile(`\s*([{}:;,>+~])\s*`)
)

// Simple CSS minifier
func minifyCSS(content string) string {
	content = blockComment.ReplaceAllString(content, "")
	content = whitespace.ReplaceAllString(content, " ")
	content = cssPunctuation.ReplaceAllString(content, "$1")
	content = strings.ReplaceAll(content, ";}", "}")
	return strings.TrimSpace(content)
}

// Simple JS minifier: drops comment lines and indentation, keeps line
// breaks so automatic semicolon insertion still holds.
func minifyJS(content string) string {
	content = lineComment.ReplaceAllString(content, "")
	content = blockComment.ReplaceAllString(content, "")

	var result []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}
	return strings.Join(result, "\n")
}

// minifiedPath is app.css -> app.min.css.
func minifiedPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".min" + ext
}

func minifyFile(inputPath string) error {
	content, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", inputPath, err)
	}

	var minified string
	switch filepath.Ext(inputPath) {
	case ".css":
		minified = minifyCSS(string(content))
	case ".js":
		minified = minifyJS(string(content))
	default:
		return fmt.Errorf("unsupported asset %s", inputPath)
	}

	outputPath := minifiedPath(inputPath)
	if err := os.WriteFile(outputPath, []byte(minified), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outputPath, err)
	}

	if len(content) > 0 {
		reduction := float64(len(content)-len(minified)) / float64(len(content)) * 100
		fmt.Printf("Minified %s: %d bytes → %d bytes (%.1f%% reduction)\n",
			filepath.Base(inputPath), len(content), len(minified), reduction)
	}
	return nil
}

func main() {
	dir := "static"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	failed := false
	for _, file := range []string{"app.css", "app.js"} {
		if err := minifyFile(filepath.Join(dir, file)); err != nil {
			fmt.Fprintf(os.Stderr, "Error minifying %s: %v\n", file, err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
	fmt.Println("Minification complete!")
}
