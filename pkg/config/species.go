package config

// DefaultSpecies is used when the configured species is not recognized.
const DefaultSpecies = "HUMAN"

// Coefficients are the smoothing separations passed to DTI-TK registration,
// in millimetres.
type Coefficients struct {
	SepCoarse float64
	SepFine   float64
}

var speciesCoefficients = map[string]Coefficients{
	"HUMAN":  {SepCoarse: 4, SepFine: 2},
	"MONKEY": {SepCoarse: 2, SepFine: 1},
	"RAT":    {SepCoarse: 0.4, SepFine: 0.2},
}

// LookupSpecies returns the coefficients for an upper-case species name.
func LookupSpecies(name string) (Coefficients, bool) {
	c, ok := speciesCoefficients[name]
	return c, ok
}
