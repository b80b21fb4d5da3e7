package census

// ACS 5-year variable codes fetched for the demographics comparison, with
// their presentation labels.
var Variables = map[string]string{
	"B01001_001E": "Total Population",
	"B01002_001E": "Median Age",
	"B19013_001E": "Median Household Income",
	"B25064_001E": "Median Gross Rent",
	"B25077_001E": "Median Home Value",
	"B25001_001E": "Housing Units",
	"B15003_022E": "Bachelor's Degree",
	"B15003_023E": "Master's Degree",
	"B15003_024E": "Professional Degree",
	"B15003_025E": "Doctorate Degree",
	"B08301_010E": "Public Transit Commuters",
	"B08301_019E": "Walked to Work",
	"B17001_002E": "Income Below Poverty",
}

// VariableOrder fixes the presentation order of the ACS variables.
var VariableOrder = []string{
	"B01001_001E",
	"B01002_001E",
	"B19013_001E",
	"B25064_001E",
	"B25077_001E",
	"B25001_001E",
	"B15003_022E",
	"B15003_023E",
	"B15003_024E",
	"B15003_025E",
	"B08301_010E",
	"B08301_019E",
	"B17001_002E",
}
