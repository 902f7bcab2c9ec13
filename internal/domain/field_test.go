package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlayer_ApplyField(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		raw     string
		want    FieldChange
		changed bool
	}{
		{"x", FieldX, "12.5", PositionChanged{Axis: AxisX, Coord: 12.5}, true},
		{"y", FieldY, "-3", PositionChanged{Axis: AxisY, Coord: -3}, true},
		{"anim", FieldAnim, `"adam_run_down"`, AnimationChanged{Anim: "adam_run_down"}, true},
		{"name", FieldName, `"Alice"`, NameChanged{Name: "Alice"}, true},
		{"same name", FieldName, `"Bob"`, nil, false},
		{"user id", FieldUserID, `"u-9"`, UserIDChanged{UserID: "u-9"}, true},
		{"ready", FieldReadyToConnect, "true", ReadyToConnectChanged{Ready: true}, true},
		{"video", FieldVideoConnected, "true", VideoConnectedChanged{Connected: true}, true},
		{"unknown", "hat", `"red"`, UnknownFieldChanged{Name: "hat", Raw: json.RawMessage(`"red"`)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Player{SessionID: "s1", Name: "Bob"}
			got, changed, err := p.ApplyField(tt.field, json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.changed, changed)
			assert.Equal(t, tt.want, got)
			if got != nil {
				assert.Equal(t, tt.field, got.Field())
			}
		})
	}
}

func TestPlayer_ApplyFieldBadValue(t *testing.T) {
	p := Player{}
	_, _, err := p.ApplyField(FieldX, json.RawMessage(`"left"`))
	assert.Error(t, err)
}

func TestValidateName(t *testing.T) {
	assert.ErrorIs(t, ValidateName(""), ErrNameEmpty)
	assert.ErrorIs(t, ValidateName("0123456789012345678901234567890123456"), ErrNameTooLong)
	assert.NoError(t, ValidateName("Carol"))
}
