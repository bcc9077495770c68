package discovery

import "fmt"

type entityMapping struct {
	deviceClass  string
	friendlyName string
	attrTemplate string
}

func recommendation(placard string) string {
	return fmt.Sprintf("{{ {'recommendation': value_json.%s} | tojson }}", ConvertName(placard))
}

// entityMappings overrides the generic template for known element names.
var entityMappings = map[string]entityMapping{
	"LIFETIME ENERGY USED": {deviceClass: "energy"},
	"LIFETIME EFFICIENCY":  {deviceClass: "energy"},
	"ELECTRIC ECONOMY":     {deviceClass: "energy"},

	"INTERM VOLT BATT VOLT": {deviceClass: "voltage"},
	"EV PLUG VOLTAGE":       {deviceClass: "voltage"},

	"HYBRID BATTERY MINIMUM TEMPERATURE":   {deviceClass: "temperature"},
	"HYBRID BATTERY MINIMUM TEMPERATURE F": {deviceClass: "temperature"},
	"AMBIENT AIR TEMPERATURE":              {deviceClass: "temperature"},
	"AMBIENT AIR TEMPERATURE F":            {deviceClass: "temperature"},
	"OIL TEMPERATURE":                      {deviceClass: "temperature"},
	"OIL TEMPERATURE F":                    {deviceClass: "temperature"},

	"EV BATTERY LEVEL": {deviceClass: "battery"},

	"TIRE PRESSURE LF":     {"pressure", "Tire Pressure: Left Front", recommendation("TIRE PRESSURE PLACARD FRONT")},
	"TIRE PRESSURE LF PSI": {"pressure", "Tire Pressure: Left Front PSI", recommendation("TIRE PRESSURE PLACARD FRONT PSI")},
	"TIRE PRESSURE LR":     {"pressure", "Tire Pressure: Left Rear", recommendation("TIRE PRESSURE PLACARD REAR")},
	"TIRE PRESSURE LR PSI": {"pressure", "Tire Pressure: Left Rear PSI", recommendation("TIRE PRESSURE PLACARD REAR PSI")},
	"TIRE PRESSURE RF":     {"pressure", "Tire Pressure: Right Front", recommendation("TIRE PRESSURE PLACARD FRONT")},
	"TIRE PRESSURE RF PSI": {"pressure", "Tire Pressure: Right Front PSI", recommendation("TIRE PRESSURE PLACARD FRONT PSI")},
	"TIRE PRESSURE RR":     {"pressure", "Tire Pressure: Right Rear", recommendation("TIRE PRESSURE PLACARD REAR")},
	"TIRE PRESSURE RR PSI": {"pressure", "Tire Pressure: Right Rear PSI", recommendation("TIRE PRESSURE PLACARD REAR PSI")},

	"EV PLUG STATE":   {deviceClass: "plug"},
	"EV CHARGE STATE": {deviceClass: "battery_charging"},
}
