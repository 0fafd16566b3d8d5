package asf

import (
	uuid "github.com/satori/go.uuid"
)

// GUID is an ASF object identifier in its wire layout: the first three
// fields little endian, the rest as written.
type GUID [16]byte

// MustParseGUID converts the textual form into the wire layout.
func MustParseGUID(s string) GUID {
	u := uuid.Must(uuid.FromString(s))
	var g GUID
	copy(g[:], u.Bytes())
	g[0], g[1], g[2], g[3] = g[3], g[2], g[1], g[0]
	g[4], g[5] = g[5], g[4]
	g[6], g[7] = g[7], g[6]
	return g
}

func (g GUID) String() string {
	b := g
	b[0], b[1], b[2], b[3] = b[3], b[2], b[1], b[0]
	b[4], b[5] = b[5], b[4]
	b[6], b[7] = b[7], b[6]
	u, _ := uuid.FromBytes(b[:])
	return u.String()
}

var (
	GUIDHeader           = MustParseGUID("75B22630-668E-11CF-A6D9-00AA0062CE6C")
	GUIDData             = MustParseGUID("75B22636-668E-11CF-A6D9-00AA0062CE6C")
	GUIDFileProperties   = MustParseGUID("8CABDCA1-A947-11CF-8EE4-00C00C205365")
	GUIDStreamProperties = MustParseGUID("B7DC0791-A9B7-11CF-8EE6-00C00C205365")
	GUIDStreamBitrate    = MustParseGUID("7BF875CE-468D-11D1-8D82-006097C9A2B2")

	GUIDStreamTypeAudio = MustParseGUID("F8699E40-5B4D-11CF-A8FD-00805F5C442B")
	GUIDStreamTypeVideo = MustParseGUID("BC19EFC0-5B4D-11CF-A8FD-00805F5C442B")
)
