package nand

import "bytes"

// Probe identifies the chip and writes the diagnostic record described in
// the package documentation into buf, returning its length. The bus is
// opened if needed and left open.
//
// On a recognized Micron part with internal ECC off, Probe sends the ECC
// enable feature and re-reads the ID until ECC reports on or the attempt
// budget runs out. A part that never reports ECC on is still accepted.
//
// Geometry and Info are only updated when the full record is produced.
func (d *Device) Probe(buf []byte) int {
	if len(buf) < ProbeResultSize {
		return ProbeNotReady
	}
	if err := d.Open(); err != nil {
		return ProbeNotReady
	}

	if !d.WaitReady() {
		return ProbeNotReady
	}
	d.Command(CmdReset)
	if !d.WaitReady() {
		return ProbeNotReady
	}

	d.Command(CmdReadID)
	d.Address(IDAddrONFI)
	d.ReadData(buf[:4])
	if !bytes.Equal(buf[:4], []byte(Signature)) {
		copy(buf, probeFailMarker)
		return ProbeNoSignature
	}

	var info Info
	for attempt := 0; ; attempt++ {
		d.Command(CmdReadID)
		d.Address(IDAddrManufacturer)
		d.ReadData(info.ID[:])

		info.Known = info.ID[0] == VendorMicron && info.ID[1] == DeviceMT29F2G08ABAEA
		info.ECCEnabled = info.Known && info.ID[4]&IDByteECCEnabled != 0
		if !info.Known || info.ECCEnabled || !d.config.EnableECC || attempt >= d.config.ECCAttempts {
			break
		}

		d.Command(CmdSetFeatures)
		d.Address(FeatureArrayMode)
		d.WriteData([]byte{ArrayModeECC, 0, 0, 0})
		if !d.WaitReady() {
			return ProbeECCTimeout
		}
	}
	buf[4] = info.ID[0]
	if !info.Known {
		buf[4] = ProbeUnknownVendor
	}

	d.Command(CmdReadParamPage)
	d.Address(0)
	if !d.WaitReady() {
		return ProbeParamTimeout
	}

	page := make([]byte, ParamPageSize)
	var pp *ParameterPage
	for copyN := 0; copyN < ParamPageCopies && pp == nil; copyN++ {
		d.ReadData(page)
		if parsed, err := ParseParameterPage(page); err == nil {
			pp = parsed
		}
	}
	if pp == nil {
		return ProbeParamCorrupt
	}

	copy(buf[5:ProbeResultSize], page[offManufacturer:offManufacturer+IDStringSize])
	info.Manufacturer = pp.Manufacturer
	info.Model = pp.Model
	info.Geometry = pp.Geometry

	d.info = info
	d.geom = pp.Geometry
	d.valid = true
	return ProbeResultSize
}

// Identify runs Probe and returns the result as an Info or a ProbeError.
func (d *Device) Identify() (*Info, error) {
	buf := make([]byte, ProbeResultSize)
	if n := d.Probe(buf); n != ProbeResultSize {
		return nil, &ProbeError{Code: n}
	}
	info := d.info
	return &info, nil
}
