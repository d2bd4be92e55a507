package protocol

// QueryMsg is every client request. Which fields matter depends on Type:
// REGIONS_AT and CAN_BUILD use the position, REGION_BY_NAME uses Name and
// REGION_BLOCKS uses Region. LAND_CREATE takes Land; LAND_DELETE and
// LAND_MEMBER take Land.ID, LAND_MEMBER also Player and Remove.
type QueryMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`

	World  string     `json:"world,omitempty"` // world name or uuid
	X      float64    `json:"x,omitempty"`
	Y      float64    `json:"y,omitempty"`
	Z      float64    `json:"z,omitempty"`
	Name   string     `json:"name,omitempty"`
	Player string     `json:"player,omitempty"` // player uuid
	Region *RegionRef `json:"region,omitempty"`
	Land   *LandSpec  `json:"land,omitempty"`
	Remove bool       `json:"remove,omitempty"`
}

type LandFlags struct {
	AllowBuild  bool `json:"allow_build"`
	AllowBreak  bool `json:"allow_break"`
	AllowDamage bool `json:"allow_damage"`
	AllowTrade  bool `json:"allow_trade"`
}

// LandSpec is a land claim on the wire. Nil Flags on create means the claim
// type's defaults.
type LandSpec struct {
	ID        string     `json:"id,omitempty"`
	Name      string     `json:"name,omitempty"`
	World     string     `json:"world,omitempty"` // world uuid
	Owner     string     `json:"owner,omitempty"`
	ClaimType string     `json:"claim_type,omitempty"`
	Anchor    [3]int     `json:"anchor"`
	Radius    int        `json:"radius"`
	Flags     *LandFlags `json:"flags,omitempty"`
	Members   []string   `json:"members,omitempty"`
}

// RegionRef names a region by its persisted identity.
type RegionRef struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

type RegionInfo struct {
	Kind     string   `json:"kind"`
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Provider string   `json:"provider"`
	Owners   []string `json:"owners"`
	Members  []string `json:"members"`
}

type BlockSummary struct {
	Count int64  `json:"count"`
	Min   [3]int `json:"min"`
	Max   [3]int `json:"max"`
}

type ResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ResultFor       string `json:"result_for"`
	ReqID           string `json:"req_id"`
	OK              bool   `json:"ok"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`

	// Regions is always present on REGIONS_AT results, empty as [].
	Regions []RegionInfo  `json:"regions"`
	Region  *RegionInfo   `json:"region,omitempty"`
	Allowed *bool         `json:"allowed,omitempty"`
	Blocks  *BlockSummary `json:"blocks,omitempty"`
	Lands   []LandSpec    `json:"lands,omitempty"`
}
