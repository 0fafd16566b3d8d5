package ebml

import (
	"fmt"
)

// ID is an element ID with its length marker bits kept, the way element IDs
// are written in Matroska element tables.
type ID uint64

const (
	IDEBML               ID = 0x1a45dfa3
	IDEBMLVersion        ID = 0x4286
	IDEBMLReadVersion    ID = 0x42f7
	IDEBMLMaxIDLength    ID = 0x42f2
	IDEBMLMaxSizeLength  ID = 0x42f3
	IDDocType            ID = 0x4282
	IDDocTypeVersion     ID = 0x4287
	IDDocTypeReadVersion ID = 0x4285
	IDVoid               ID = 0xec
	IDCRC32              ID = 0xbf

	IDSegment       ID = 0x18538067
	IDSeekHead      ID = 0x114d9b74
	IDInfo          ID = 0x1549a966
	IDTimecodeScale ID = 0x2ad7b1
	IDTracks        ID = 0x1654ae6b
	IDCues          ID = 0x1c53bb6b
	IDAttachments   ID = 0x1941a469
	IDChapters      ID = 0x1043a770
	IDTags          ID = 0x1254c367
	IDCluster       ID = 0x1f43b675
	IDTimecode      ID = 0xe7
	IDPosition      ID = 0xa7
	IDPrevSize      ID = 0xab
	IDSimpleBlock   ID = 0xa3
	IDBlockGroup    ID = 0xa0
)

var idNames = map[ID]string{
	IDEBML:               "EBML",
	IDEBMLVersion:        "EBMLVersion",
	IDEBMLReadVersion:    "EBMLReadVersion",
	IDEBMLMaxIDLength:    "EBMLMaxIDLength",
	IDEBMLMaxSizeLength:  "EBMLMaxSizeLength",
	IDDocType:            "DocType",
	IDDocTypeVersion:     "DocTypeVersion",
	IDDocTypeReadVersion: "DocTypeReadVersion",
	IDVoid:               "Void",
	IDCRC32:              "CRC-32",
	IDSegment:            "Segment",
	IDSeekHead:           "SeekHead",
	IDInfo:               "Info",
	IDTimecodeScale:      "TimecodeScale",
	IDTracks:             "Tracks",
	IDCues:               "Cues",
	IDAttachments:        "Attachments",
	IDChapters:           "Chapters",
	IDTags:               "Tags",
	IDCluster:            "Cluster",
	IDTimecode:           "Timecode",
	IDPosition:           "Position",
	IDPrevSize:           "PrevSize",
	IDSimpleBlock:        "SimpleBlock",
	IDBlockGroup:         "BlockGroup",
}

func (id ID) String() string {
	if name, ok := idNames[id]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%#x)", uint64(id))
}
