package application

import (
	"encoding/json"
	"sort"
	"time"

	tariff "building-energy/internal/tariff/domain"
	timeseries "building-energy/internal/timeseries/domain"
)

// Report is the document consumed by the dashboard.
type Report struct {
	GeneratedAt time.Time        `json:"generatedAt"`
	Hourly      HourlySection    `json:"hourly"`
	Daily       DailySection     `json:"daily"`
	Monthly     MonthlySection   `json:"monthly"`
	ET          ETSection        `json:"et"`
	Prices      PriceSection     `json:"prices"`
	SpotPrices  SpotPriceSection `json:"spotprices"`
	Cost        CostSection      `json:"cost"`
	Table       TableSection     `json:"table"`
}

type HourlySection struct {
	Rows []HourlyRow `json:"rows"`
}

// HourlyRow is one past hour. Price is the combined cost and is null unless both
// carriers reported usage for the hour.
type HourlyRow struct {
	Date        timeseries.Date `json:"date"`
	Hour        int             `json:"hour"`
	Name        string          `json:"name"`
	Electricity Value           `json:"electricity"`
	Heat        Value           `json:"heat"`
	Temperature Value           `json:"temperature"`
	Price       Value           `json:"price"`
}

type DailySection struct {
	Rows []DailyRow `json:"rows"`
}

// DailyRow sums one day. Datapoint counts below 24 mark incomplete days.
type DailyRow struct {
	Date                  timeseries.Date `json:"date"`
	Name                  string          `json:"name"`
	Electricity           Value           `json:"electricity"`
	Heat                  Value           `json:"heat"`
	ElectricityDatapoints int             `json:"electricityDatapoints"`
	HeatDatapoints        int             `json:"heatDatapoints"`
	Temperature           Value           `json:"temperature"`
	ElectricityCost       Value           `json:"electricityCost"`
	HeatCost              Value           `json:"heatCost"`
	Cost                  Value           `json:"cost"`
	ElectricityPerKWh     Value           `json:"electricityPriceKwh"`
	HeatPerKWh            Value           `json:"heatPriceKwh"`
}

type MonthlySection struct {
	Rows []MonthlyRow `json:"rows"`
}

type MonthlyRow struct {
	Month                 timeseries.YearMonth `json:"month"`
	Name                  string               `json:"name"`
	Electricity           Value                `json:"electricity"`
	Heat                  Value                `json:"heat"`
	ElectricityDatapoints int                  `json:"electricityDatapoints"`
	HeatDatapoints        int                  `json:"heatDatapoints"`
	Temperature           Value                `json:"temperature"`
	SpotPrice             Value                `json:"spotprice"`
	ElectricityCost       Value                `json:"electricityCost"`
	HeatCost              Value                `json:"heatCost"`
}

// ETRow pairs a complete day's usage with its mean temperature.
type ETRow struct {
	Date        timeseries.Date `json:"date"`
	Name        string          `json:"name"`
	Electricity float64         `json:"electricity"`
	Heat        float64         `json:"heat"`
	Power       float64         `json:"power"`
	Temperature float64         `json:"temperature"`
	Index       int             `json:"index"`
}

// Regression is a heating trend line: power = Slope*temperature + YStart.
type Regression struct {
	Slope  Value `json:"slope"`
	YStart Value `json:"yStart"`
	Points int   `json:"points"`
}

// ETSection serializes as {"rows": [...], "<period key>": {...}, ...}.
type ETSection struct {
	Rows        []ETRow
	Regressions map[string]Regression
}

// RegressionKeys returns the regression keys in order.
func (s ETSection) RegressionKeys() []string {
	keys := make([]string, 0, len(s.Regressions))
	for key := range s.Regressions {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (s ETSection) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Regressions)+1)
	for key, regression := range s.Regressions {
		out[key] = regression
	}
	rows := s.Rows
	if rows == nil {
		rows = []ETRow{}
	}
	out["rows"] = rows
	return json.Marshal(out)
}

func (s *ETSection) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Regressions = make(map[string]Regression, len(raw))
	s.Rows = nil
	for key, value := range raw {
		if key == "rows" {
			if err := json.Unmarshal(value, &s.Rows); err != nil {
				return err
			}
			continue
		}
		var regression Regression
		if err := json.Unmarshal(value, &regression); err != nil {
			return err
		}
		s.Regressions[key] = regression
	}
	return nil
}

type PriceSection struct {
	Rows []PriceRow `json:"rows"`
}

// PriceRow is the expected per kWh price of an hour, computed with an assumed usage
// when the real one is not known yet.
type PriceRow struct {
	Date              timeseries.Date `json:"date"`
	Hour              int             `json:"hour"`
	Name              string          `json:"name"`
	SpotPrice         Value           `json:"spotprice"`
	ElectricityPerKWh Value           `json:"electricityPriceKwh"`
	HeatPerKWh        Value           `json:"heatPriceKwh"`
}

type SpotPriceSection struct {
	CurrentMonth  MonthSpotPrice `json:"currentMonth"`
	PreviousMonth MonthSpotPrice `json:"previousMonth"`
}

type MonthSpotPrice struct {
	YearMonth timeseries.YearMonth `json:"yearMonth"`
	SpotPrice Value                `json:"spotprice"`
}

type CostSection struct {
	CurrentMonth      CostPeriod `json:"currentMonth"`
	PreviousMonth     CostPeriod `json:"previousMonth"`
	CurrentYear       CostPeriod `json:"currentYear"`
	SameMonthLastYear CostPeriod `json:"sameMonthLastYear"`
}

// CostPeriod is the summed cost of a date range; an empty range has zero sums.
type CostPeriod struct {
	Name string          `json:"name"`
	From timeseries.Date `json:"from"`
	To   timeseries.Date `json:"to"`
	Cost PeriodCost      `json:"cost"`
}

type PeriodCost struct {
	ElectricitySum        Value `json:"electricitySum"`
	HeatSum               Value `json:"heatSum"`
	ElectricityUsage      Value `json:"electricityUsage"`
	HeatUsage             Value `json:"heatUsage"`
	ElectricityDatapoints int   `json:"electricityDatapoints"`
	HeatDatapoints        int   `json:"heatDatapoints"`
}

type TableSection struct {
	Yearly           []TableRow      `json:"yearly"`
	Monthly          []TableRow      `json:"monthly"`
	LastDays         []TableRow      `json:"lastDays"`
	YearlyToThisDate YearToDateTable `json:"yearlyToThisDate"`
}

// YearToDateTable compares every year up to the same day of year.
type YearToDateTable struct {
	UntilDayIncl int        `json:"untilDayIncl"`
	Data         []TableRow `json:"data"`
}

// TableRow carries full breakdowns so the dashboard can itemize every cost line.
type TableRow struct {
	Name                  string           `json:"name"`
	Temperature           Value            `json:"temperature"`
	SpotPrice             Value            `json:"spotprice"`
	Electricity           tariff.Breakdown `json:"electricity"`
	Heat                  tariff.Breakdown `json:"heat"`
	ElectricityDatapoints int              `json:"electricityDatapoints"`
	HeatDatapoints        int              `json:"heatDatapoints"`
}
