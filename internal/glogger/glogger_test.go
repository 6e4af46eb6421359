package glogger

import (
	"errors"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		kv   []interface{}
		want string
	}{
		{"no pairs", "ready", nil, "ready"},
		{"pairs", "flash identified", []interface{}{"model", "MT29F2G08", "ecc", true}, "flash identified model=MT29F2G08 ecc=true"},
		{"error value", "boot failed", []interface{}{"error", errors.New("no image")}, "boot failed error=no image"},
		{"dangling key", "odd", []interface{}{"bytes"}, "odd bytes=?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(tt.msg, tt.kv); got != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}
