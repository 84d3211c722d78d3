package registry

import (
	"errors"
	"testing"

	"github.com/larsks/carcontrol/internal/pindriver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	r, err := Load(DefaultDefinitions())
	require.NoError(t, err)

	assert.Equal(t, 8, r.Len())
	assert.Equal(t, []string{"switch1", "switch2", "switch3", "switch4", "switch5", "switch6", "switch7", "switch8"}, r.IDs())

	def, err := r.Resolve("switch5")
	require.NoError(t, err)
	assert.Equal(t, 22, def.Pin)
	assert.Equal(t, "Horn/Buzzer", def.Name)
	assert.Equal(t, "switch5 (Horn/Buzzer)", def.String())
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		defs    []Definition
		wantErr []error
	}{
		{
			name:    "empty table",
			defs:    nil,
			wantErr: []error{ErrNoSwitches},
		},
		{
			name: "duplicate id",
			defs: []Definition{
				{ID: "a", Pin: 1},
				{ID: "a", Pin: 2},
			},
			wantErr: []error{ErrDuplicateID},
		},
		{
			name: "duplicate pin",
			defs: []Definition{
				{ID: "a", Pin: 1},
				{ID: "b", Pin: 1},
			},
			wantErr: []error{ErrDuplicatePin},
		},
		{
			name: "empty id",
			defs: []Definition{
				{ID: "", Pin: 1},
			},
			wantErr: []error{ErrEmptyID},
		},
		{
			name: "negative pin",
			defs: []Definition{
				{ID: "a", Pin: -4},
			},
			wantErr: []error{ErrInvalidPin},
		},
		{
			name: "every violation is reported",
			defs: []Definition{
				{ID: "a", Pin: 1},
				{ID: "a", Pin: 1},
			},
			wantErr: []error{ErrDuplicateID, ErrDuplicatePin},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Load(tt.defs)
			require.Error(t, err)
			assert.Nil(t, r)
			assert.True(t, errors.Is(err, ErrStartupConfig), "error should be a startup config error: %v", err)
			for _, want := range tt.wantErr {
				assert.True(t, errors.Is(err, want), "expected %v in %v", want, err)
			}
		})
	}
}

func TestResolve_Unknown(t *testing.T) {
	r, err := Load(DefaultDefinitions())
	require.NoError(t, err)

	_, err = r.Resolve("switch99")
	assert.True(t, errors.Is(err, ErrUnknownSwitch))
}

func TestAll_ReturnsCopy(t *testing.T) {
	r, err := Load(DefaultDefinitions())
	require.NoError(t, err)

	defs := r.All()
	defs[0].Name = "changed"

	def, err := r.Resolve("switch1")
	require.NoError(t, err)
	assert.Equal(t, "Front Lights", def.Name)
}

func TestDefinition_Polarity(t *testing.T) {
	assert.Equal(t, pindriver.ActiveHigh, Definition{}.Polarity())
	assert.Equal(t, pindriver.ActiveLow, Definition{ActiveLow: true}.Polarity())
}
