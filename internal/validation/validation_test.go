package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seatingRequest struct {
	TableName string `json:"tableName" validate:"required,notblank"`
	Seats     int    `json:"seats" validate:"gte=1,lte=20"`
	Side      string `json:"side" validate:"omitempty,oneof=bride groom"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid struct passes", func(t *testing.T) {
		err := ValidateStruct(&seatingRequest{TableName: "Table 1", Seats: 8, Side: "bride"})
		assert.NoError(t, err)
	})

	t.Run("violations use json field names", func(t *testing.T) {
		err := ValidateStruct(&seatingRequest{Seats: 0, Side: "aunt"})
		require.Error(t, err)

		var structErr *StructError
		require.ErrorAs(t, err, &structErr)
		require.Len(t, structErr.Violations, 3)

		fields := map[string]string{}
		for _, v := range structErr.Violations {
			fields[v.Field] = v.Tag
		}
		assert.Equal(t, "required", fields["tableName"])
		assert.Equal(t, "gte", fields["seats"])
		assert.Equal(t, "oneof", fields["side"])
		assert.Contains(t, err.Error(), "tableName is a required field")
	})

	t.Run("blank strings are rejected", func(t *testing.T) {
		err := ValidateStruct(&seatingRequest{TableName: "   ", Seats: 2})
		require.Error(t, err)

		var structErr *StructError
		require.ErrorAs(t, err, &structErr)
		require.Len(t, structErr.Violations, 1)
		assert.Equal(t, "notblank", structErr.Violations[0].Tag)
		assert.Equal(t, "tableName must not be blank", structErr.Violations[0].Description)
	})
}
