package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type regionPayload struct {
	RegionID string `validate:"omitempty,region_code"`
}

func TestRegionCode(t *testing.T) {
	v := New()

	for _, code := range []string{"01", "06", "10", "18"} {
		assert.NoError(t, v.Validate(regionPayload{RegionID: code}), "code %s", code)
	}

	for _, code := range []string{"00", "19", "99", "6", "006", "ab", "1a"} {
		assert.Error(t, v.Validate(regionPayload{RegionID: code}), "code %s", code)
	}

	// omitempty: absent region is fine.
	assert.NoError(t, v.Validate(regionPayload{}))
}

func TestValidateRequired(t *testing.T) {
	v := New()

	type payload struct {
		Name string `validate:"required"`
	}
	assert.Error(t, v.Validate(payload{}))
	assert.NoError(t, v.Validate(payload{Name: "x"}))
}
