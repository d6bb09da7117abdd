package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/cstrsim/internal/dynamo"
)

// Nominal operating point for a coolant temperature of 300 K.
const (
	SteadyCa = 0.87725294608097
	SteadyT  = 324.475443431599
	SteadyTc = 300.0
)

// CSTR is a jacketed, continuously stirred tank with an irreversible,
// exothermic first-order reaction A -> B.
// State: [Ca, T]. Control: [Tc].
//
//	rA     = k0 exp(-E/R / T) Ca
//	dCa/dt = q/V (Caf - Ca) - rA
//	dT/dt  = q/V (Tf - T) + (-dH)/(rho Cp) rA + UA/(V rho Cp) (Tc - T)
type CSTR struct {
	Flow      float64 // q, m^3/s
	Volume    float64 // V, m^3
	Density   float64 // rho, kg/m^3
	HeatCap   float64 // Cp, J/kg-K
	HeatOfRxn float64 // -dH, J/mol
	ActEnergy float64 // E/R, K
	PreExp    float64 // k0, 1/s
	HeatXfer  float64 // UA, W/K
	FeedTemp  float64 // Tf, K
	FeedConc  float64 // Caf, mol/m^3
}

func NewCSTR() *CSTR {
	return &CSTR{
		Flow:      100,
		Volume:    100,
		Density:   1000,
		HeatCap:   0.239,
		HeatOfRxn: 5e4,
		ActEnergy: 8750,
		PreExp:    7.2e10,
		HeatXfer:  5e4,
		FeedTemp:  350,
		FeedConc:  1,
	}
}

func (c *CSTR) StateDim() int   { return 2 }
func (c *CSTR) ControlDim() int { return 1 }

// Derive returns the unmodified derivative even when it is not finite.
func (c *CSTR) Derive(x dynamo.State, u dynamo.Control, _ float64) dynamo.State {
	ca, temp := x[dynamo.Ca], x[dynamo.T]
	tc := u[dynamo.InputTc]

	rA := c.PreExp * math.Exp(-c.ActEnergy/temp) * ca
	dilution := c.Flow / c.Volume
	rhoCp := c.Density * c.HeatCap

	dCa := dilution*(c.FeedConc-ca) - rA
	dT := dilution*(c.FeedTemp-temp) + c.HeatOfRxn/rhoCp*rA + c.HeatXfer/(c.Volume*rhoCp)*(tc-temp)

	return dynamo.State{dCa, dT}
}

func (c *CSTR) SteadyState() dynamo.State {
	return dynamo.State{SteadyCa, SteadyT}
}

// GetParams implements dynamo.Configurable
func (c *CSTR) GetParams() map[string]float64 {
	return map[string]float64{
		"q":      c.Flow,
		"V":      c.Volume,
		"rho":    c.Density,
		"Cp":     c.HeatCap,
		"mdelH":  c.HeatOfRxn,
		"EoverR": c.ActEnergy,
		"k0":     c.PreExp,
		"UA":     c.HeatXfer,
		"Tf":     c.FeedTemp,
		"Caf":    c.FeedConc,
	}
}

// SetParam implements dynamo.Configurable
func (c *CSTR) SetParam(name string, value float64) error {
	switch name {
	case "q":
		c.Flow = value
	case "V":
		c.Volume = value
	case "rho":
		c.Density = value
	case "Cp":
		c.HeatCap = value
	case "mdelH":
		c.HeatOfRxn = value
	case "EoverR":
		c.ActEnergy = value
	case "k0":
		c.PreExp = value
	case "UA":
		c.HeatXfer = value
	case "Tf":
		c.FeedTemp = value
	case "Caf":
		c.FeedConc = value
	default:
		return fmt.Errorf("unknown param: %s", name)
	}
	return nil
}
