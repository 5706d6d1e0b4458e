// Package dacapi provides the instrument command surface of the LNHR DAC II
// on top of the dacnet protocol driver.
//
// The protocol layer treats commands as opaque ASCII strings; this package
// owns the device vocabulary: per-channel operations (output on/off,
// bandwidth selection, 24-bit DAC codes), subsystem configuration for the
// waveform generators (AWG, SWG), the ramp/step generator and wave memory,
// voltage/code conversion, and bulk waveform sample uploads.
//
// Command grammar:
//
//	<channel> <payload>              per-channel operation (e.g. "3 on")
//	c <subsystem> <field> <value>    subsystem configuration
//	<subsystem> <field>?             subsystem query
//	<wave-memory> <hex-addr> <volt>  per-sample waveform upload
//
// Bulk uploads run inside a held connection (dacnet.Driver.Hold) so that
// tens of thousands of samples share a single TCP session, and abort on the
// first failed sample: a lost ordering guarantee in wave memory is worse
// than an early abort.
package dacapi
