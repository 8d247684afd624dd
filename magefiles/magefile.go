//go:build mage

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main contains Mage build targets for dataset-engine developer tooling.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/magefile/mage/sh"
)

// projectDirs lists the working directories the pipeline expects.
var projectDirs = []string{
	"data/archive",
	"data/raw",
	"data/processed/images",
	"data/processed/metadata",
	"data/catalog",
	".secrets",
}

// Init creates the project directory structure for the pipeline.
func Init() error {
	for _, dir := range projectDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		fmt.Println("  ", dir)
	}
	fmt.Println("Project directories initialized.")
	return nil
}

const (
	binDir  = "bin"
	binName = "dataset-engine"
	cmdPkg  = "./cmd/dataset-engine"
)

// binPath is the CLI binary produced by Build.
var binPath = filepath.Join(binDir, binName)

// Build compiles the CLI binary into bin/, stamping the version from
// git describe when available.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	version := "dev"
	if v, err := sh.Output("git", "describe", "--tags", "--always", "--dirty"); err == nil && strings.TrimSpace(v) != "" {
		version = strings.TrimSpace(v)
	}
	ldflags := "-X main.version=" + version
	if err := sh.RunV("go", "build", "-ldflags", ldflags, "-o", binPath, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s (%s)\n", binPath, version)
	return nil
}

// Test runs the unit tests.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Stats prints non-blank Go lines per package, split into production
// and test code, and the file count and size of each pipeline data
// directory that exists.
func Stats() error {
	pkgs, err := goLinesByPackage(".")
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Package", "Code", "Tests"})
	var code, tests int
	for _, dir := range sortedKeys(pkgs) {
		n := pkgs[dir]
		t.AppendRow(table.Row{dir, n.code, n.tests})
		code += n.code
		tests += n.tests
	}
	t.AppendFooter(table.Row{"total", code, tests})
	fmt.Println(t.Render())

	d := table.NewWriter()
	d.SetStyle(table.StyleRounded)
	d.AppendHeader(table.Row{"Data", "Files", "Size"})
	for _, dir := range projectDirs {
		files, size, err := dirUsage(dir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
		d.AppendRow(table.Row{dir, files, humanize.Bytes(uint64(size))})
	}
	if d.Length() > 0 {
		fmt.Println(d.Render())
	}
	return nil
}

type lineCount struct{ code, tests int }

// goLinesByPackage counts non-blank lines of Go files keyed by directory.
func goLinesByPackage(root string) (map[string]lineCount, error) {
	counts := map[string]lineCount{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return skipHidden(path, d)
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		n, err := nonBlankLines(path)
		if err != nil {
			return err
		}
		dir := filepath.ToSlash(filepath.Dir(path))
		c := counts[dir]
		if strings.HasSuffix(path, "_test.go") {
			c.tests += n
		} else {
			c.code += n
		}
		counts[dir] = c
		return nil
	})
	return counts, err
}

func nonBlankLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) != "" {
			n++
		}
	}
	return n, sc.Err()
}

// dirUsage returns the number and total size of regular files under dir.
func dirUsage(dir string) (int, int64, error) {
	var (
		files int
		size  int64
	)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files++
		size += info.Size()
		return nil
	})
	return files, size, err
}

// skipHidden skips directories the go tool ignores (".git", "_examples",
// "testdata") and the data tree.
func skipHidden(path string, d fs.DirEntry) error {
	name := d.Name()
	if path == "." {
		return nil
	}
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "testdata" || name == "data" {
		return filepath.SkipDir
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
