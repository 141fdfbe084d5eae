// internal/domain/power_source.go
package domain

import "strings"

// PowerSourceKind is one of Generator, Battery, Solar, Grid, Other.
type PowerSourceKind string

const (
	Generator PowerSourceKind = "Generator"
	Battery   PowerSourceKind = "Battery"
	Solar     PowerSourceKind = "Solar"
	Grid      PowerSourceKind = "Grid"
	Other     PowerSourceKind = "Other"
)

// PowerSourceKinds lists every kind in display order.
var PowerSourceKinds = []PowerSourceKind{Generator, Battery, Solar, Grid, Other}

// ParsePowerSourceKind matches a kind name or its lower-case detail key.
func ParsePowerSourceKind(s string) (PowerSourceKind, bool) {
	for _, k := range PowerSourceKinds {
		if strings.EqualFold(strings.TrimSpace(s), string(k)) {
			return k, true
		}
	}
	return "", false
}

// Key is the lower-cased name used under powerSourceDetails.
func (k PowerSourceKind) Key() string {
	return strings.ToLower(string(k))
}

// Enumerated detail values.
var (
	GeneratorTypes = []string{
		"perkins", "cummins", "cat", "fgt", "doosan", "mtu", "volvo", "john_deere", "yanmar",
		"kirloskar", "mitsubishi", "honda", "kohler", "mecc_alte", "premec", "niroc", "other",
	}
	BatteryTypes        = []string{"li_ion", "lead_acid", "flow", "lithium_iron"}
	SolarTypes          = []string{"mono", "poly", "thin", "bifacial"}
	GridConnectionTypes = []string{"single_phase", "three_phase"}
)

// FieldSpec describes one field of a power source sub-record.
type FieldSpec struct {
	Name     string
	Label    string
	Numeric  bool
	Required bool
	Enum     []string
}

// Fields returns the ordered field specs of the kind.
func (k PowerSourceKind) Fields() []FieldSpec {
	switch k {
	case Grid:
		return []FieldSpec{
			{Name: "connectionType", Label: "connection type", Required: true, Enum: GridConnectionTypes},
			{Name: "voltage", Label: "voltage", Numeric: true, Required: true},
			{Name: "load", Label: "load", Numeric: true, Required: true},
		}
	case Generator:
		return []FieldSpec{
			{Name: "type", Label: "type", Required: true, Enum: GeneratorTypes},
			{Name: "capacity", Label: "capacity", Numeric: true, Required: true},
			{Name: "load", Label: "load", Numeric: true},
			{Name: "autonomy", Label: "autonomy", Numeric: true},
			{Name: "fuelTank", Label: "fuel tank", Numeric: true},
		}
	case Battery:
		return []FieldSpec{
			{Name: "type", Label: "type", Required: true, Enum: BatteryTypes},
			{Name: "capacity", Label: "capacity", Numeric: true, Required: true},
			{Name: "voltage", Label: "voltage", Numeric: true},
			{Name: "depth", Label: "depth", Numeric: true},
			{Name: "quantity", Label: "quantity", Numeric: true},
		}
	case Solar:
		return []FieldSpec{
			{Name: "type", Label: "type", Required: true, Enum: SolarTypes},
			{Name: "capacity", Label: "capacity", Numeric: true, Required: true},
			{Name: "tilt", Label: "tilt", Numeric: true},
			{Name: "inverterSize", Label: "inverter size", Numeric: true},
			{Name: "autonomy", Label: "autonomy", Numeric: true},
		}
	case Other:
		return []FieldSpec{
			{Name: "type", Label: "type"},
			{Name: "capacity", Label: "capacity", Numeric: true},
			{Name: "description", Label: "description"},
		}
	}
	return nil
}

// PowerSource is a kind-specific detail sub-record.
type PowerSource interface {
	Kind() PowerSourceKind
	// Values returns populated fields keyed by field name; numbers are float64.
	Values() map[string]any
}

// GridDetails (connectionType, voltage in V, load in kW)
type GridDetails struct {
	ConnectionType string   `json:"connectionType,omitempty" bson:"connectionType,omitempty"`
	Voltage        *float64 `json:"voltage,omitempty" bson:"voltage,omitempty"`
	Load           *float64 `json:"load,omitempty" bson:"load,omitempty"`
}

// GeneratorDetails (capacity in kVA, load in kW, autonomy in hours, fuelTank in litres)
type GeneratorDetails struct {
	Type     string   `json:"type,omitempty" bson:"type,omitempty"`
	Capacity *float64 `json:"capacity,omitempty" bson:"capacity,omitempty"`
	Load     *float64 `json:"load,omitempty" bson:"load,omitempty"`
	Autonomy *float64 `json:"autonomy,omitempty" bson:"autonomy,omitempty"`
	FuelTank *float64 `json:"fuelTank,omitempty" bson:"fuelTank,omitempty"`
}

// BatteryDetails (capacity in kWh, voltage in V, depth in %, quantity in packs)
type BatteryDetails struct {
	Type     string   `json:"type,omitempty" bson:"type,omitempty"`
	Capacity *float64 `json:"capacity,omitempty" bson:"capacity,omitempty"`
	Voltage  *float64 `json:"voltage,omitempty" bson:"voltage,omitempty"`
	Depth    *float64 `json:"depth,omitempty" bson:"depth,omitempty"`
	Quantity *float64 `json:"quantity,omitempty" bson:"quantity,omitempty"`
}

// SolarDetails (capacity in kW, tilt in degrees, inverterSize in kW, autonomy in kWh)
type SolarDetails struct {
	Type         string   `json:"type,omitempty" bson:"type,omitempty"`
	Capacity     *float64 `json:"capacity,omitempty" bson:"capacity,omitempty"`
	Tilt         *float64 `json:"tilt,omitempty" bson:"tilt,omitempty"`
	InverterSize *float64 `json:"inverterSize,omitempty" bson:"inverterSize,omitempty"`
	Autonomy     *float64 `json:"autonomy,omitempty" bson:"autonomy,omitempty"`
}

// OtherDetails is a free-form power source.
type OtherDetails struct {
	Type        string   `json:"type,omitempty" bson:"type,omitempty"`
	Capacity    *float64 `json:"capacity,omitempty" bson:"capacity,omitempty"`
	Description string   `json:"description,omitempty" bson:"description,omitempty"`
}

func (*GridDetails) Kind() PowerSourceKind      { return Grid }
func (*GeneratorDetails) Kind() PowerSourceKind { return Generator }
func (*BatteryDetails) Kind() PowerSourceKind   { return Battery }
func (*SolarDetails) Kind() PowerSourceKind     { return Solar }
func (*OtherDetails) Kind() PowerSourceKind     { return Other }

func (d *GridDetails) Values() map[string]any {
	v := map[string]any{}
	putString(v, "connectionType", d.ConnectionType)
	putNumber(v, "voltage", d.Voltage)
	putNumber(v, "load", d.Load)
	return v
}

func (d *GeneratorDetails) Values() map[string]any {
	v := map[string]any{}
	putString(v, "type", d.Type)
	putNumber(v, "capacity", d.Capacity)
	putNumber(v, "load", d.Load)
	putNumber(v, "autonomy", d.Autonomy)
	putNumber(v, "fuelTank", d.FuelTank)
	return v
}

func (d *BatteryDetails) Values() map[string]any {
	v := map[string]any{}
	putString(v, "type", d.Type)
	putNumber(v, "capacity", d.Capacity)
	putNumber(v, "voltage", d.Voltage)
	putNumber(v, "depth", d.Depth)
	putNumber(v, "quantity", d.Quantity)
	return v
}

func (d *SolarDetails) Values() map[string]any {
	v := map[string]any{}
	putString(v, "type", d.Type)
	putNumber(v, "capacity", d.Capacity)
	putNumber(v, "tilt", d.Tilt)
	putNumber(v, "inverterSize", d.InverterSize)
	putNumber(v, "autonomy", d.Autonomy)
	return v
}

func (d *OtherDetails) Values() map[string]any {
	v := map[string]any{}
	putString(v, "type", d.Type)
	putNumber(v, "capacity", d.Capacity)
	putString(v, "description", d.Description)
	return v
}

// PowerSourceDetails holds at most one sub-record per kind.
type PowerSourceDetails struct {
	Generator *GeneratorDetails `json:"generator,omitempty" bson:"generator,omitempty"`
	Battery   *BatteryDetails   `json:"battery,omitempty" bson:"battery,omitempty"`
	Solar     *SolarDetails     `json:"solar,omitempty" bson:"solar,omitempty"`
	Grid      *GridDetails      `json:"grid,omitempty" bson:"grid,omitempty"`
	Other     *OtherDetails     `json:"other,omitempty" bson:"other,omitempty"`
}

// Get returns the sub-record for kind, if populated.
func (d PowerSourceDetails) Get(kind PowerSourceKind) (PowerSource, bool) {
	switch kind {
	case Generator:
		if d.Generator != nil {
			return d.Generator, true
		}
	case Battery:
		if d.Battery != nil {
			return d.Battery, true
		}
	case Solar:
		if d.Solar != nil {
			return d.Solar, true
		}
	case Grid:
		if d.Grid != nil {
			return d.Grid, true
		}
	case Other:
		if d.Other != nil {
			return d.Other, true
		}
	}
	return nil, false
}

// Set replaces the sub-record of ps's kind.
func (d *PowerSourceDetails) Set(ps PowerSource) {
	switch v := ps.(type) {
	case *GeneratorDetails:
		d.Generator = v
	case *BatteryDetails:
		d.Battery = v
	case *SolarDetails:
		d.Solar = v
	case *GridDetails:
		d.Grid = v
	case *OtherDetails:
		d.Other = v
	}
}

// Delete drops the sub-record of kind.
func (d *PowerSourceDetails) Delete(kind PowerSourceKind) {
	switch kind {
	case Generator:
		d.Generator = nil
	case Battery:
		d.Battery = nil
	case Solar:
		d.Solar = nil
	case Grid:
		d.Grid = nil
	case Other:
		d.Other = nil
	}
}

// Kinds lists the populated sub-records in display order.
func (d PowerSourceDetails) Kinds() []PowerSourceKind {
	var kinds []PowerSourceKind
	for _, k := range PowerSourceKinds {
		if _, ok := d.Get(k); ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Clone deep-copies every populated sub-record.
func (d PowerSourceDetails) Clone() PowerSourceDetails {
	var out PowerSourceDetails
	if d.Generator != nil {
		g := *d.Generator
		g.Capacity, g.Load, g.Autonomy, g.FuelTank = cloneFloat(g.Capacity), cloneFloat(g.Load), cloneFloat(g.Autonomy), cloneFloat(g.FuelTank)
		out.Generator = &g
	}
	if d.Battery != nil {
		b := *d.Battery
		b.Capacity, b.Voltage, b.Depth, b.Quantity = cloneFloat(b.Capacity), cloneFloat(b.Voltage), cloneFloat(b.Depth), cloneFloat(b.Quantity)
		out.Battery = &b
	}
	if d.Solar != nil {
		s := *d.Solar
		s.Capacity, s.Tilt, s.InverterSize, s.Autonomy = cloneFloat(s.Capacity), cloneFloat(s.Tilt), cloneFloat(s.InverterSize), cloneFloat(s.Autonomy)
		out.Solar = &s
	}
	if d.Grid != nil {
		g := *d.Grid
		g.Voltage, g.Load = cloneFloat(g.Voltage), cloneFloat(g.Load)
		out.Grid = &g
	}
	if d.Other != nil {
		o := *d.Other
		o.Capacity = cloneFloat(o.Capacity)
		out.Other = &o
	}
	return out
}

// Float is a helper for building optional numeric fields.
func Float(v float64) *float64 { return &v }

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func putString(m map[string]any, key, val string) {
	if val != "" {
		m[key] = val
	}
}

func putNumber(m map[string]any, key string, val *float64) {
	if val != nil {
		m[key] = *val
	}
}
