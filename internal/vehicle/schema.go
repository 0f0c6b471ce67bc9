// Package vehicle describes the car-listing record consumed by the price model:
// the ordered field schema shared by the transformer and the predictor, the
// tri-state option flags, the record type itself and the required-field gate.
package vehicle

import "fmt"

// FieldRole tells the transformer how a field is shaped before reaching the model.
type FieldRole int

const (
	Categorical FieldRole = iota // target-encoded
	Numeric                      // log1p-scaled
	Flag                         // option flag, 0/1 then log1p-scaled
)

func (r FieldRole) String() string {
	switch r {
	case Categorical:
		return "categorical"
	case Numeric:
		return "numeric"
	case Flag:
		return "flag"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// MarshalText lets roles appear by name in JSON schema listings.
func (r FieldRole) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Field is one column of the model input.
type Field struct {
	Name     string    `json:"name"`
	Label    string    `json:"label"`
	Role     FieldRole `json:"role"`
	Required bool      `json:"required"`
}

// Schema is the ordered field list of a listing record. Records follow the
// declaration order; model input puts categorical fields first and keeps the
// rest in declaration order, matching how the training frame was assembled.
// A Schema is immutable after construction and safe for concurrent use.
type Schema struct {
	fields     []Field
	index      map[string]int
	model      []int // record position of each model input slot
	modelIndex map[string]int
}

// NewSchema builds a schema from fields in record order. Names must be unique and non-empty.
func NewSchema(fields ...Field) (*Schema, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("schema needs at least one field")
	}
	s := &Schema{
		fields: make([]Field, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("field %d has no name", i)
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, fmt.Errorf("duplicate field %q", f.Name)
		}
		if f.Label == "" {
			f.Label = f.Name
		}
		s.fields[i] = f
		s.index[f.Name] = i
	}

	s.model = make([]int, 0, len(fields))
	for i, f := range s.fields {
		if f.Role == Categorical {
			s.model = append(s.model, i)
		}
	}
	for i, f := range s.fields {
		if f.Role != Categorical {
			s.model = append(s.model, i)
		}
	}
	s.modelIndex = make(map[string]int, len(fields))
	for slot, i := range s.model {
		s.modelIndex[s.fields[i].Name] = slot
	}
	return s, nil
}

// Len returns the number of fields, which is also the model's input width.
func (s *Schema) Len() int { return len(s.fields) }

// Fields returns a copy of the ordered field list.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Names returns field names in record order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Name
	}
	return out
}

// Lookup returns the field with the given name.
func (s *Schema) Lookup(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Index returns the position of name in record order, or -1.
func (s *Schema) Index(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// ModelNames returns field names in model input order.
func (s *Schema) ModelNames() []string {
	out := make([]string, len(s.model))
	for slot, i := range s.model {
		out[slot] = s.fields[i].Name
	}
	return out
}

// ModelIndex returns the model input slot of name, or -1.
func (s *Schema) ModelIndex(name string) int {
	if slot, ok := s.modelIndex[name]; ok {
		return slot
	}
	return -1
}

// RecordPosition returns the record position feeding model input slot.
func (s *Schema) RecordPosition(slot int) int { return s.model[slot] }

// ByRole returns the names of every field with the given role, in record order.
func (s *Schema) ByRole(role FieldRole) []string {
	var out []string
	for _, f := range s.fields {
		if f.Role == role {
			out = append(out, f.Name)
		}
	}
	return out
}

// Column names of the car-listing dataset.
const (
	FieldModelo      = "modelo"
	FieldCombustivel = "combustivel"
	FieldAno         = "ano"
	FieldKm          = "km"
	FieldCor         = "cor"
	FieldCambio      = "cambio"
	FieldCidade      = "cidade"
	FieldMotor       = "motor"
	FieldPreco       = "preco"
)

// OptionFlags lists the equipment columns in record order. The trailing comma in
// the brake-distribution column is part of the dataset header.
var OptionFlags = []string{
	"airbag motorista",
	"freios ABS",
	"airbag passageiro",
	"ar-condicionado",
	"direção elétrica",
	"volante com regulagem de altura",
	"travas elétricas",
	"cd player com MP3",
	"entrada USB",
	"vidros elétricos dianteiros",
	"limajuste de alturap. traseiro",
	"desemb. traseiro",
	"alarme",
	"ajuste de altura",
	"distribuição eletrônica de frenagem,",
	"controle de tração",
	"retrovisores elétricos",
	"piloto automático",
	"Kit Multimídia",
	"bancos de couro",
	"limp. traseiro",
}

// DefaultSchema returns the car-listing schema. Its record order is the
// listing column order; its model order is the training frame order:
// modelo, combustivel, cor, cidade, then ano, km, cambio, the option flags and motor.
func DefaultSchema() *Schema {
	fields := []Field{
		{Name: FieldModelo, Label: "Modelo", Role: Categorical, Required: true},
		{Name: FieldCombustivel, Label: "Combustível", Role: Categorical, Required: true},
		{Name: FieldAno, Label: "Ano", Role: Numeric, Required: true},
		{Name: FieldKm, Label: "Quilometragem", Role: Numeric, Required: true},
		{Name: FieldCor, Label: "Cor", Role: Categorical, Required: true},
		{Name: FieldCambio, Label: "Cambio", Role: Numeric, Required: true},
		{Name: FieldCidade, Label: "Cidade", Role: Categorical, Required: true},
	}
	for _, name := range OptionFlags {
		fields = append(fields, Field{Name: name, Role: Flag})
	}
	fields = append(fields, Field{Name: FieldMotor, Label: "Motorização (Cilindradas*)", Role: Numeric, Required: true})

	s, err := NewSchema(fields...)
	if err != nil {
		panic(err)
	}
	return s
}
