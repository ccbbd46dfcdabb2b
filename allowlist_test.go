/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowList(t *testing.T) {
	a := newAllowList([]string{"bubu", " Celia ", "", "   "})

	assert.Len(t, a, 2)

	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"exact", "bubu", true},
		{"upper", "BUBU", true},
		{"padded", "  Bubu ", true},
		{"tabs and newlines", "\tcelia\n", true},
		{"configured with padding", "celia", true},
		{"stranger", "Bob", false},
		{"prefix only", "bub", false},
		{"inner space", "bu bu", false},
		{"empty", "", false},
		{"blank", "   ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Accepts(tt.in))
		})
	}
}

func TestAllowListLowercasesWithoutFolding(t *testing.T) {
	a := newAllowList([]string{"bess", "Straße"})

	assert.True(t, a.Accepts("BESS"))
	assert.True(t, a.Accepts("STRAßE"))
	assert.True(t, a.Accepts("straße"))
	assert.False(t, a.Accepts("beß"))
	assert.False(t, a.Accepts("strasse"))
}

func TestAllowListEmpty(t *testing.T) {
	a := newAllowList(nil)

	assert.Empty(t, a)
	assert.False(t, a.Accepts("bubu"))
}
