package helper

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

type outputRecord struct {
	Name   string `json:"name" yaml:"name"`
	Serial int64  `json:"serial" yaml:"serial"`
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, []outputRecord{{Name: "alice", Serial: 2}}))
	require.YAMLEq(t, "- name: alice\n  serial: 2\n", buf.String())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, &outputRecord{Name: "alice", Serial: 2}))
	require.JSONEq(t, `{"name": "alice", "serial": 2}`, buf.String())
}
