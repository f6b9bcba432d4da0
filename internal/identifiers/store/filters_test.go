package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"efti-gate/internal/identifiers/models"
)

func TestMeansFragment(t *testing.T) {
	dg := true
	f := MeansFragment(models.Criteria{
		Identifier:          "abc123",
		ModeCode:            "3",
		RegistrationCountry: "FR",
		DangerousGoods:      &dg,
	})

	assert.Equal(t,
		"SELECT DISTINCT c.id FROM consignment c "+joinMovement+
			" WHERE UPPER(m.used_transport_means_id) = $1"+
			" AND m.dangerous_goods_indicator = $2"+
			" AND m.mode_code = $3"+
			" AND m.used_transport_means_registration_country = $4",
		f.SQL)
	assert.Equal(t, []any{"ABC123", true, "3", "FR"}, f.Args)
}

func TestEquipmentFragment(t *testing.T) {
	t.Run("identifier only", func(t *testing.T) {
		f := EquipmentFragment(models.Criteria{Identifier: "ab"})
		assert.Contains(t, f.SQL, joinUsed)
		assert.Contains(t, f.SQL, "UPPER(ue.equipment_id) = $1")
		assert.Equal(t, []any{"AB"}, f.Args)
	})

	t.Run("country filters the equipment row", func(t *testing.T) {
		f := EquipmentFragment(models.Criteria{Identifier: "ab", RegistrationCountry: "BE"})
		assert.Contains(t, f.SQL, "ue.registration_country = $2")
		assert.NotContains(t, f.SQL, "used_transport_means_registration_country")
	})
}

func TestCarriedFragment(t *testing.T) {
	f := CarriedFragment(models.Criteria{Identifier: "c1", RegistrationCountry: "BE", ModeCode: "1"})
	assert.Contains(t, f.SQL, joinCarried)
	assert.Contains(t, f.SQL, "UPPER(ce.equipment_id) = $1")
	assert.Contains(t, f.SQL, "m.mode_code = $2")
	assert.NotContains(t, f.SQL, "registration_country")
	assert.Equal(t, []any{"C1", "1"}, f.Args)
}

func TestFragmentFor(t *testing.T) {
	for _, typ := range models.AllIdentifierTypes {
		_, err := FragmentFor(typ, models.Criteria{Identifier: "x"})
		require.NoError(t, err)
	}
	_, err := FragmentFor("vessel", models.Criteria{Identifier: "x"})
	assert.Error(t, err)
}
