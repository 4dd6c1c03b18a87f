package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/lifelog/internal/common"
	"github.com/Veraticus/lifelog/internal/model"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: FormatTable},
		{in: "table", want: FormatTable},
		{in: "JSON", want: FormatJSON},
		{in: " yaml ", want: FormatYAML},
		{in: "csv", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, common.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteStructured(t *testing.T) {
	alert := model.Alert{Level: model.AlertWarning, Message: "3 consecutive days missed"}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteStructured(&buf, FormatJSON, alert))
		assert.JSONEq(t, `{"level":"warning","message":"3 consecutive days missed"}`, buf.String())
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteStructured(&buf, FormatYAML, alert))
		assert.YAMLEq(t, "level: warning\nmessage: 3 consecutive days missed\n", buf.String())
	})

	t.Run("table is not structured", func(t *testing.T) {
		assert.False(t, FormatTable.Structured())
		require.ErrorIs(t, WriteStructured(&bytes.Buffer{}, FormatTable, alert), common.ErrInvalidInput)
	})
}
