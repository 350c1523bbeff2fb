package obs

// Role is a canonical meaning for an observation column.
type Role string

const (
	RoleLatitude             Role = "latitude"
	RoleLongitude            Role = "longitude"
	RoleAltitude             Role = "altitude"
	RolePressure             Role = "pressure"
	RoleLiquidWater          Role = "liquid_water"
	RoleDropletConcentration Role = "droplet_concentration"
	RoleTemperature          Role = "temperature"
)

// AllRoles lists every role in a fixed order.
var AllRoles = []Role{
	RoleLatitude, RoleLongitude, RoleAltitude, RolePressure,
	RoleLiquidWater, RoleDropletConcentration, RoleTemperature,
}

// Roles maps canonical roles to concrete column names.
type Roles map[Role]string

// DefaultRoles returns the column names used by the NCAR/EOL aircraft
// products (GV low-rate files).
func DefaultRoles() Roles {
	return Roles{
		RoleLatitude:             "GGLAT",
		RoleLongitude:            "GGLON",
		RoleAltitude:             "GGALT",
		RolePressure:             "PSXC",
		RoleLiquidWater:          "PLWCD_RWIO",
		RoleDropletConcentration: "CONCD_RWIO",
		RoleTemperature:          "ATX",
	}
}

// Column returns the column mapped to role, or "" when unmapped.
func (r Roles) Column(role Role) string {
	if r == nil {
		return ""
	}
	return r[role]
}

// Merge returns a copy of r with every non-empty entry of o applied on top.
func (r Roles) Merge(o Roles) Roles {
	out := make(Roles, len(r)+len(o))
	for k, v := range r {
		out[k] = v
	}
	for k, v := range o {
		if v != "" {
			out[k] = v
		}
	}
	return out
}
