package types

import (
	"encoding/json"
	"io/fs"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestParseEntityType(t *testing.T) {
	type args struct {
		s string
	}
	tests := [...]struct {
		name    string
		args    args
		want    EntityType
		wantErr bool
	}{
		{`root`, args{"root"}, TypeRoot, false},
		{`ca alias`, args{"ca"}, TypeRoot, false},
		{`server`, args{"Server"}, TypeServer, false},
		{`client`, args{" client "}, TypeClient, false},
		{`empty`, args{""}, TypeNone, true},
		{`unknown`, args{"intermediate"}, TypeNone, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEntityType(tt.args.s)
			require.Truef(t, (err != nil) == tt.wantErr, `ParseEntityType() failed: error = %+v, wantErr = %v`, err, tt.wantErr)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestEntityTypeJSON(t *testing.T) {
	data, err := json.Marshal(struct{ Type EntityType }{TypeServer})
	require.NoError(t, err)
	require.JSONEq(t, `{"Type":"server"}`, string(data))

	var got struct{ Type EntityType }
	require.NoError(t, json.Unmarshal([]byte(`{"Type":"client"}`), &got))
	require.Equal(t, TypeClient, got.Type)

	require.Error(t, json.Unmarshal([]byte(`{"Type":"bogus"}`), &got))
}

func TestClassify(t *testing.T) {
	require.NoError(t, Classify(ErrStorageIO, nil, "ignored"))

	err := Classify(ErrStorageIO, fs.ErrPermission, "fail to read serial")
	require.ErrorIs(t, err, ErrStorageIO)
	require.ErrorIs(t, err, fs.ErrPermission)
	require.NotErrorIs(t, err, ErrNotFound)
	require.Contains(t, err.Error(), "fail to read serial")

	wrapped := errors.Wrap(err, "fail to issue")
	require.ErrorIs(t, wrapped, ErrStorageIO)
}
