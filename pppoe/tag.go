package pppoe

import "fmt"

// TagType is the PPPoE discovery TLV type field (RFC 2516 section 5).
type TagType uint16

// Recognized discovery tags. Other tag values decode fine but are exposed
// to callers as opaque Tags rather than through named accessors.
const (
	TagEndOfList   TagType = 0x0000
	TagServiceName TagType = 0x0101
	TagACName      TagType = 0x0102
	TagHostUniq    TagType = 0x0103
	TagACCookie    TagType = 0x0104
)

// Code is the PPPoE discovery packet code (RFC 2516 section 4.1).
type Code uint8

// Discovery packet codes.
const (
	CodePADI Code = 0x09
	CodePADO Code = 0x07
	CodePADR Code = 0x19
	CodePADS Code = 0x65
	CodePADT Code = 0xa7
)

func (c Code) String() string {
	switch c {
	case CodePADI:
		return "PADI"
	case CodePADO:
		return "PADO"
	case CodePADR:
		return "PADR"
	case CodePADS:
		return "PADS"
	case CodePADT:
		return "PADT"
	default:
		return "Unknown"
	}
}

// Tag is a single PPPoE discovery TLV: a recognized or opaque Type plus its
// raw Value. Tag order is preserved on both decode and encode.
type Tag struct {
	Type  TagType
	Value []byte
}

// String returns a printable form of the tag, rendering known string-valued
// tags as strings and everything else as its raw type/length.
func (t Tag) String() string {
	switch t.Type {
	case TagServiceName, TagACName:
		return string(t.Value)
	default:
		return fmt.Sprintf("type=%#04x len=%d", uint16(t.Type), len(t.Value))
	}
}
