/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// AllowList is the set of display names allowed past the entry screen.
// Comparison is whitespace-trimmed and lower-cased, without folding, so
// "beß" does not match "bess". It keeps strangers out of the joke, nothing
// more.
type AllowList map[string]struct{}

func foldName(name string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(name))
}

func newAllowList(names []string) AllowList {
	a := make(AllowList, len(names))

	for _, name := range names {
		folded := foldName(name)
		if folded == "" {
			continue
		}

		a[folded] = struct{}{}
	}

	return a
}

func (a AllowList) Accepts(name string) bool {
	folded := foldName(name)
	if folded == "" {
		return false
	}

	_, ok := a[folded]

	return ok
}
