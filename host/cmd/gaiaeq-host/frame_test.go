package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFrame(t *testing.T) {
	tests := []struct {
		args   []string
		recalc bool
		want   []byte
	}{
		{[]string{"get", "master"}, false, []byte{0xFF, 0xFF, 0x9B, 0x02, 0x01, 0x01}},
		{[]string{"get", "2", "gain"}, false, []byte{0xFF, 0xFF, 0x9B, 0x02, 0x01, 0x22}},
		{[]string{"get", "5", "filter"}, false, []byte{0xFF, 0xFF, 0x9B, 0x02, 0x01, 0x50}},
		{[]string{"set", "1", "freq", "1000"}, false, []byte{0xFF, 0xFF, 0x1B, 0x02, 0x01, 0x11, 0x03, 0xE8, 0x00}},
		{[]string{"set", "master", "-1200"}, true, []byte{0xFF, 0xFF, 0x1B, 0x02, 0x01, 0x01, 0xFB, 0x50, 0x01}},
		{[]string{"preset"}, false, []byte{0xFF, 0xFF, 0x94, 0x02}},
		{[]string{"preset", "2"}, false, []byte{0xFF, 0xFF, 0x14, 0x02, 0x02}},
	}

	for _, tt := range tests {
		got, err := buildFrame(tt.args, tt.recalc)
		require.NoError(t, err, "%v", tt.args)
		assert.Equal(t, tt.want, got, "%v", tt.args)
	}
}

func TestBuildFrameRejects(t *testing.T) {
	for _, args := range [][]string{
		{"ping"},
		{"get"},
		{"get", "0", "gain"},
		{"get", "16", "gain"},
		{"get", "1", "volume"},
		{"get", "1", "master"},
		{"set", "1", "gain"},
		{"set", "1", "gain", "lots"},
		{"set", "master", "70000"},
		{"preset", "3"},
	} {
		_, err := buildFrame(args, false)
		assert.Error(t, err, "%v", args)
	}
}

func TestFrameCommandSkipsConfig(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)

	root.SetArgs([]string{"frame", "get", "master", "--config", "/nonexistent/gaiaeq.yaml"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "FF FF 9B 02 01 01\n", out.String())
}
