package store

import (
	"fmt"
	"strings"

	"efti-gate/internal/identifiers/models"
)

// Fragment is a parameterized query selecting consignment ids. Placeholders
// are numbered from $1 in Args order.
type Fragment struct {
	SQL  string
	Args []any
}

// fragmentBuilder accumulates joins and predicates for one strategy.
type fragmentBuilder struct {
	joins []string
	conds []string
	args  []any
}

func (b *fragmentBuilder) join(clause string) *fragmentBuilder {
	b.joins = append(b.joins, clause)
	return b
}

// where appends a predicate; each %d in cond is replaced by the new argument's placeholder index.
func (b *fragmentBuilder) where(cond string, arg any) *fragmentBuilder {
	b.args = append(b.args, arg)
	b.conds = append(b.conds, fmt.Sprintf(cond, len(b.args)))
	return b
}

func (b *fragmentBuilder) build() Fragment {
	var sb strings.Builder
	sb.WriteString("SELECT DISTINCT c.id FROM consignment c")
	for _, j := range b.joins {
		sb.WriteString(" ")
		sb.WriteString(j)
	}
	if len(b.conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.conds, " AND "))
	}
	return Fragment{SQL: sb.String(), Args: b.args}
}

const (
	joinMovement = "LEFT JOIN main_carriage_transport_movement m ON m.consignment_id = c.id"
	joinUsed     = "LEFT JOIN used_transport_equipment ue ON ue.consignment_id = c.id"
	joinCarried  = "LEFT JOIN carried_transport_equipment ce ON ce.used_transport_equipment_id = ue.id"
)

// movementFilters adds the dangerous goods and mode code predicates every strategy shares.
func movementFilters(b *fragmentBuilder, c models.Criteria) {
	if c.DangerousGoods != nil {
		b.where("m.dangerous_goods_indicator = $%d", *c.DangerousGoods)
	}
	if c.ModeCode != "" {
		b.where("m.mode_code = $%d", c.ModeCode)
	}
}

// MeansFragment matches the transport means id of a movement.
func MeansFragment(c models.Criteria) Fragment {
	b := (&fragmentBuilder{}).join(joinMovement)
	b.where("UPPER(m.used_transport_means_id) = $%d", strings.ToUpper(c.Identifier))
	movementFilters(b, c)
	if c.RegistrationCountry != "" {
		b.where("m.used_transport_means_registration_country = $%d", c.RegistrationCountry)
	}
	return b.build()
}

// EquipmentFragment matches top-level used equipment.
func EquipmentFragment(c models.Criteria) Fragment {
	b := (&fragmentBuilder{}).join(joinMovement).join(joinUsed)
	b.where("UPPER(ue.equipment_id) = $%d", strings.ToUpper(c.Identifier))
	movementFilters(b, c)
	if c.RegistrationCountry != "" {
		b.where("ue.registration_country = $%d", c.RegistrationCountry)
	}
	return b.build()
}

// CarriedFragment matches equipment carried on used equipment. Registration
// country does not apply at this level.
func CarriedFragment(c models.Criteria) Fragment {
	b := (&fragmentBuilder{}).join(joinMovement).join(joinUsed).join(joinCarried)
	b.where("UPPER(ce.equipment_id) = $%d", strings.ToUpper(c.Identifier))
	movementFilters(b, c)
	return b.build()
}

// FragmentFor returns the builder for one strategy.
func FragmentFor(t models.IdentifierType, c models.Criteria) (Fragment, error) {
	switch t {
	case models.IdentifierMeans:
		return MeansFragment(c), nil
	case models.IdentifierEquipment:
		return EquipmentFragment(c), nil
	case models.IdentifierCarried:
		return CarriedFragment(c), nil
	}
	return Fragment{}, fmt.Errorf("unknown identifier type %q", t)
}
