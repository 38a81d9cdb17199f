package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"example.com/segyview/internal/report"
	"example.com/segyview/internal/segy"
)

var segyExts = map[string]bool{".sgy": true, ".segy": true}

// isSegyInput matches .sgy and .segy names, optionally followed by a
// supported compression suffix.
func isSegyInput(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	if segy.CompressionFor(name) != segy.CompressionNone {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	return segyExts[filepath.Ext(name)]
}

// batchName is the output directory name for an input: the base name
// without SEG-Y or compression extensions.
func batchName(path string) string {
	name := filepath.Base(path)
	for {
		ext := filepath.Ext(name)
		lower := strings.ToLower(ext)
		if ext == "" || (!segyExts[lower] && segy.CompressionFor(name) == segy.CompressionNone) {
			return name
		}
		name = strings.TrimSuffix(name, ext)
	}
}

func collectInputs(dir string) ([]string, error) {
	var inputs []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isSegyInput(path) {
			inputs = append(inputs, path)
		}
		return nil
	})
	sort.Strings(inputs)
	return inputs, err
}

// batchCmd renders a preview and a survey summary for every SEG-Y file
// under a directory. Failures are reported per file; the command exits 1
// if any file failed.
func batchCmd(args []string) {
	fset := flag.NewFlagSet("batch", flag.ExitOnError)
	inDir := fset.String("in", ".", "input directory")
	outDir := fset.String("out-dir", "out", "results directory")
	lang := fset.String("lang", "en", "summary language (en, tr)")
	rf := addRenderFlags(fset)
	fset.Parse(args)

	language, err := report.ParseLanguage(*lang)
	if err != nil {
		fail("lang", err)
	}
	inputs, err := collectInputs(*inDir)
	if err != nil {
		fail("scan inputs", err)
	}
	if len(inputs) == 0 {
		fmt.Fprintf(stdout, "No SEG-Y files under %s\n", *inDir)
		return
	}
	var failed []string
	for _, in := range inputs {
		out := filepath.Join(*outDir, batchName(in))
		if err := batchOne(in, out, rf, language); err != nil {
			fmt.Fprintf(stdout, "%s: %v\n", in, err)
			failed = append(failed, in)
			continue
		}
		fmt.Fprintf(stdout, "%s -> %s\n", in, out)
	}
	fmt.Fprintf(stdout, "Processed %d files, %d failed\n", len(inputs), len(failed))
	if len(failed) > 0 {
		exit(1)
	}
}

func batchOne(in, out string, rf *renderFlags, lang report.Language) error {
	r, err := segy.Open(in)
	if err != nil {
		return err
	}
	defer r.Close()
	total, known := r.TotalTraces()
	if !known || total == 0 {
		return errors.New("no complete traces")
	}
	cfg, err := rf.config(total, known)
	if err != nil {
		return err
	}
	survey, err := report.Build(r, report.Options{Render: &cfg, Lang: lang, Fingerprint: true})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(out, "preview.png"), survey.Image, 0o644); err != nil {
		return err
	}
	return report.SaveSurveyJSON(survey, filepath.Join(out, "summary.json"))
}
