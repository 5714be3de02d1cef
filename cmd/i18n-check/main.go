// Package main implements i18n-check, a small tool that verifies every
// translation file carries the same key set as the reference language.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/cfab/hwagent/internal/i18n"
)

func main() {
	dir := flag.String("dir", "translations", "directory containing <code>.json translation files")
	ref := flag.String("ref", "en", "reference language code")
	flag.Parse()

	consistent, err := check(os.Stdout, *dir, *ref)
	if err != nil {
		log.Fatalf("i18n-check failed: %v", err)
	}
	if !consistent {
		os.Exit(1)
	}
}

func check(out io.Writer, dir, ref string) (bool, error) {
	catalog, err := i18n.NewCatalog(dir, ref, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		return false, err
	}

	refKeys, err := catalog.Keys(ref)
	if err != nil {
		return false, err
	}
	refSet := make(map[string]bool, len(refKeys))
	for _, k := range refKeys {
		refSet[k] = true
	}

	languages, err := catalog.Available()
	if err != nil {
		return false, err
	}

	consistent := true
	for _, lang := range languages {
		if lang == ref {
			continue
		}

		keys, err := catalog.Keys(lang)
		if err != nil {
			return false, err
		}
		seen := make(map[string]bool, len(keys))

		var missing, extra []string
		for _, k := range keys {
			seen[k] = true
			if !refSet[k] {
				extra = append(extra, k)
			}
		}
		for _, k := range refKeys {
			if !seen[k] {
				missing = append(missing, k)
			}
		}

		if len(missing) == 0 && len(extra) == 0 {
			fmt.Fprintf(out, "%s: ok (%d keys)\n", lang, len(keys))
			continue
		}
		consistent = false
		for _, k := range missing {
			fmt.Fprintf(out, "%s: missing %s\n", lang, k)
		}
		for _, k := range extra {
			fmt.Fprintf(out, "%s: extra %s\n", lang, k)
		}
	}
	return consistent, nil
}
