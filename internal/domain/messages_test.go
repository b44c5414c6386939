package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPersistRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		record  PersistRecord
		wantErr error
	}{
		{
			name:   "valid",
			record: PersistRecord{RoomID: "r1", From: "alice", Ts: 1700000000000},
		},
		{
			name:    "missing room id",
			record:  PersistRecord{From: "alice", Ts: 1700000000000},
			wantErr: ErrMissingRoomID,
		},
		{
			name:    "empty from",
			record:  PersistRecord{RoomID: "r1", From: "", Ts: 1700000000000},
			wantErr: ErrMissingFrom,
		},
		{
			name:    "zero timestamp",
			record:  PersistRecord{RoomID: "r1", From: "alice"},
			wantErr: ErrMissingTimestamp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestEnvelopeHasPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    bool
	}{
		{"object", `{"text":"hi"}`, true},
		{"empty object", `{}`, true},
		{"array", `[1,2]`, true},
		{"non-empty string", `"hello"`, true},
		{"non-zero number", `42`, true},
		{"true", `true`, true},
		{"absent", ``, false},
		{"null", `null`, false},
		{"empty string", `""`, false},
		{"zero", `0`, false},
		{"false", `false`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := `{"type":"chat","roomId":"r1"}`
			if tt.payload != "" {
				raw = `{"type":"chat","roomId":"r1","payload":` + tt.payload + `}`
			}
			var env Envelope
			require.NoError(t, json.Unmarshal([]byte(raw), &env))
			require.Equal(t, tt.want, env.HasPayload())
		})
	}
}

func TestPersistRecordWireFormat(t *testing.T) {
	rec := PersistRecord{
		RoomID:  "r1",
		From:    "alice",
		Payload: json.RawMessage(`{"text":"hi"}`),
		Ts:      1700000000000,
	}

	data, err := json.Marshal(&rec)
	require.NoError(t, err)
	require.JSONEq(t, `{"roomId":"r1","from":"alice","payload":{"text":"hi"},"ts":1700000000000}`, string(data))
}
