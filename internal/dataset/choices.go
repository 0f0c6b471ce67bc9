package dataset

import "carprice/internal/vehicle"

// Choices are the finite vocabularies offered to whoever fills in a record.
type Choices struct {
	Modelos      []string           `json:"modelos"`
	Combustiveis []string           `json:"combustiveis"`
	Anos         []int              `json:"anos"`
	Km           []int              `json:"km"`
	Cores        []string           `json:"cores"`
	Cambio       map[string]float64 `json:"cambio"`
	Cidades      []string           `json:"cidades"`
	Motores      []string           `json:"motores"`
	Opcionais    []string           `json:"opcionais"`
}

// Fixed buckets offered by the prediction form.
var (
	YearBuckets    = []int{2000, 2005, 2010, 2015, 2020, 2023}
	MileageBuckets = []int{0, 1000, 10000, 20000, 30000, 40000, 50000, 60000, 70000, 80000, 90000, 100000, 150000, 200000}
	ColourChoices  = []string{"Branco", "Preto", "Prata", "Cinza"}
	GearboxChoices = map[string]float64{"Manual": 0, "Automático": 1}
)

// ChoicesFrom derives the form vocabularies from the reference dataset.
func ChoicesFrom(d *Dataset) Choices {
	opts := make([]string, len(vehicle.OptionFlags))
	copy(opts, vehicle.OptionFlags)

	return Choices{
		Modelos:      d.Distinct(vehicle.FieldModelo),
		Combustiveis: d.Distinct(vehicle.FieldCombustivel),
		Anos:         append([]int(nil), YearBuckets...),
		Km:           append([]int(nil), MileageBuckets...),
		Cores:        append([]string(nil), ColourChoices...),
		Cambio:       map[string]float64{"Manual": GearboxChoices["Manual"], "Automático": GearboxChoices["Automático"]},
		Cidades:      d.DistinctSorted(vehicle.FieldCidade),
		Motores:      d.Distinct(vehicle.FieldMotor),
		Opcionais:    opts,
	}
}
