package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeRegionsAt    = "REGIONS_AT"
	TypeRegionByName = "REGION_BY_NAME"
	TypeCanBuild     = "CAN_BUILD"
	TypeRegionBlocks = "REGION_BLOCKS"
	TypeResult       = "RESULT"

	// Land administration; accepted only on the admin endpoint.
	TypeLandList   = "LAND_LIST"
	TypeLandCreate = "LAND_CREATE"
	TypeLandDelete = "LAND_DELETE"
	TypeLandMember = "LAND_MEMBER"
)

func IsAdminType(t string) bool {
	switch t {
	case TypeLandList, TypeLandCreate, TypeLandDelete, TypeLandMember:
		return true
	}
	return false
}

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	ReqID           string `json:"req_id,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
