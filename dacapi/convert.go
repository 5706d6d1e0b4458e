package dacapi

import (
	"fmt"
	"math"
)

// Output voltage range of the DAC.
const (
	MinVoltage = -10.0
	MaxVoltage = 10.0
)

// codePerVolt is the conversion constant from the programmer's manual:
// one volt spans 838860.74 LSB of the 24-bit code.
const codePerVolt = 838860.74

// MaxCode is the largest 24-bit DAC code (+10 V full scale).
const MaxCode uint32 = 0xFFFFFF

// VoltageToCode converts an output voltage to the 24-bit DAC code.
//
// The conversion rounds to the nearest code and clips to the code range;
// inputs outside [MinVoltage, MaxVoltage] saturate at the rails, matching
// the physical output range. The firmware's exact rounding rule at the
// extremes is not documented; round-to-nearest matches all published
// example values.
func VoltageToCode(v float64) uint32 {
	code := math.Round((v - MinVoltage) * codePerVolt)
	if code < 0 {
		return 0
	}
	if code > float64(MaxCode) {
		return MaxCode
	}

	return uint32(code)
}

// CodeToVoltage converts a 24-bit DAC code back to the output voltage.
func CodeToVoltage(code uint32) float64 {
	if code > MaxCode {
		code = MaxCode
	}

	return float64(code)/codePerVolt + MinVoltage
}

// FormatCode renders a DAC code in the 6-digit hexadecimal form the
// device expects.
func FormatCode(code uint32) string {
	return fmt.Sprintf("%06X", code&MaxCode)
}
