package timeseries

// Carrier is an energy type tracked by the building.
type Carrier string

const (
	CarrierElectricity Carrier = "electricity"
	CarrierHeat        Carrier = "heat"
)

// Carriers lists every carrier in report order.
func Carriers() []Carrier { return []Carrier{CarrierElectricity, CarrierHeat} }

// DefaultHeatMeter is the meter name the district heat readings are stored under.
const DefaultHeatMeter = "Fjernvarme"

// HourUsage is one hour of metered consumption in kWh.
type HourUsage struct {
	Date     Date    `json:"date"`
	Hour     int     `json:"hour"`
	Usage    float64 `json:"usage"`
	Verified *bool   `json:"verified,omitempty"`
}

func (r HourUsage) Key() DateHour { return DateHour{Date: r.Date, Hour: r.Hour} }

// IsVerified treats a missing flag as verified; only the grid operator sends provisional values.
func (r HourUsage) IsVerified() bool { return r.Verified == nil || *r.Verified }

// HourPrice is a wholesale spot price in currency per MWh, ex VAT, as published.
type HourPrice struct {
	Date  Date    `json:"date"`
	Hour  int     `json:"hour"`
	Price float64 `json:"price"`
}

func (r HourPrice) Key() DateHour { return DateHour{Date: r.Date, Hour: r.Hour} }

// HourTemperature is an hourly outdoor temperature in degrees Celsius.
type HourTemperature struct {
	Date        Date    `json:"date"`
	Hour        int     `json:"hour"`
	Temperature float64 `json:"temperature"`
}

func (r HourTemperature) Key() DateHour { return DateHour{Date: r.Date, Hour: r.Hour} }

// DayTemperature is the daily mean outdoor temperature.
type DayTemperature struct {
	Date            Date    `json:"date"`
	MeanTemperature float64 `json:"meanTemperature"`
}

// Verified returns a pointer for HourUsage.Verified.
func Verified(v bool) *bool { return &v }
