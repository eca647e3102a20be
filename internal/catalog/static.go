package catalog

import (
	"github.com/sporelab/reportql/internal/domain"
)

// PetriGrowthStages are the known values of petri_growth_stage, ordered from
// no growth to overrun.
var PetriGrowthStages = []string{
	"None",
	"Trace",
	"Very Low",
	"Low",
	"Moderate",
	"Moderately High",
	"High",
	"Very High",
	"Severe",
	"TNTC",
}

var yesNo = []string{"Yes", "No"}

// staticTables is the predefined field registry used when live schema
// introspection is unavailable.
func staticTables() map[string][]domain.Field {
	return map[string][]domain.Field{
		"petri_observations": {
			{Name: "observation_id", DisplayName: "Observation", Type: domain.FieldTypeUUID},
			{Name: "submission_id", DisplayName: "Submission", Type: domain.FieldTypeUUID},
			{Name: "site_id", DisplayName: "Site", Type: domain.FieldTypeUUID},
			{Name: "program_id", DisplayName: "Program", Type: domain.FieldTypeUUID},
			{Name: "petri_code", DisplayName: "Petri Code", Type: domain.FieldTypeText},
			{Name: "fungicide_used", DisplayName: "Fungicide Used", Type: domain.FieldTypeEnum, EnumValues: yesNo},
			{Name: "growth_index", DisplayName: "Growth Index", Type: domain.FieldTypeNumeric, Nullable: true},
			{Name: "petri_growth_stage", DisplayName: "Growth Stage", Type: domain.FieldTypeEnum, EnumValues: PetriGrowthStages},
			{Name: "placement", DisplayName: "Placement", Type: domain.FieldTypeEnum, EnumValues: []string{"Front", "Middle", "Back", "Perimeter", "Core"}},
			{Name: "todays_day_of_phase", DisplayName: "Day of Phase", Type: domain.FieldTypeInteger, Nullable: true},
			{Name: "outdoor_temperature", DisplayName: "Outdoor Temperature", Type: domain.FieldTypeNumeric, Nullable: true},
			{Name: "outdoor_humidity", DisplayName: "Outdoor Humidity", Type: domain.FieldTypeNumeric, Nullable: true},
			{Name: "notes", DisplayName: "Notes", Type: domain.FieldTypeText, Nullable: true},
			{Name: "created_at", DisplayName: "Created", Type: domain.FieldTypeTimestamp},
		},
		"gasifier_observations": {
			{Name: "observation_id", DisplayName: "Observation", Type: domain.FieldTypeUUID},
			{Name: "submission_id", DisplayName: "Submission", Type: domain.FieldTypeUUID},
			{Name: "site_id", DisplayName: "Site", Type: domain.FieldTypeUUID},
			{Name: "program_id", DisplayName: "Program", Type: domain.FieldTypeUUID},
			{Name: "gasifier_code", DisplayName: "Gasifier Code", Type: domain.FieldTypeText},
			{Name: "chemical_type", DisplayName: "Chemical Type", Type: domain.FieldTypeEnum, EnumValues: []string{"Geraniol", "CLO2", "Acetic Acid", "Citronella Blend", "Essential Oils"}},
			{Name: "measure", DisplayName: "Measure", Type: domain.FieldTypeNumeric, Nullable: true},
			{Name: "linear_reading", DisplayName: "Linear Reading", Type: domain.FieldTypeNumeric, Nullable: true},
			{Name: "flow_rate", DisplayName: "Flow Rate", Type: domain.FieldTypeNumeric, Nullable: true},
			{Name: "anomaly", DisplayName: "Anomaly", Type: domain.FieldTypeBoolean},
			{Name: "created_at", DisplayName: "Created", Type: domain.FieldTypeTimestamp},
		},
		"submissions": {
			{Name: "submission_id", DisplayName: "Submission", Type: domain.FieldTypeUUID},
			{Name: "site_id", DisplayName: "Site", Type: domain.FieldTypeUUID},
			{Name: "program_id", DisplayName: "Program", Type: domain.FieldTypeUUID},
			{Name: "temperature", DisplayName: "Temperature", Type: domain.FieldTypeNumeric, Nullable: true},
			{Name: "humidity", DisplayName: "Humidity", Type: domain.FieldTypeNumeric, Nullable: true},
			{Name: "airflow", DisplayName: "Airflow", Type: domain.FieldTypeEnum, EnumValues: []string{"Open", "Closed"}},
			{Name: "odor_distance", DisplayName: "Odor Distance", Type: domain.FieldTypeEnum, EnumValues: []string{"5-10ft", "10-25ft", "25-50ft", "50-100ft", ">100ft"}},
			{Name: "weather", DisplayName: "Weather", Type: domain.FieldTypeEnum, EnumValues: []string{"Clear", "Cloudy", "Rain"}},
			{Name: "notes", DisplayName: "Notes", Type: domain.FieldTypeText, Nullable: true},
			{Name: "created_at", DisplayName: "Created", Type: domain.FieldTypeTimestamp},
		},
		"sites": {
			{Name: "site_id", DisplayName: "Site", Type: domain.FieldTypeUUID},
			{Name: "program_id", DisplayName: "Program", Type: domain.FieldTypeUUID},
			{Name: "name", DisplayName: "Site Name", Type: domain.FieldTypeText},
			{Name: "site_type", DisplayName: "Site Type", Type: domain.FieldTypeEnum, EnumValues: []string{"Greenhouse", "Storage", "Transport", "Production"}},
			{Name: "square_footage", DisplayName: "Square Footage", Type: domain.FieldTypeNumeric, Nullable: true},
			{Name: "total_petris", DisplayName: "Total Petris", Type: domain.FieldTypeInteger, Nullable: true},
			{Name: "created_at", DisplayName: "Created", Type: domain.FieldTypeTimestamp},
		},
		"pilot_programs": {
			{Name: "program_id", DisplayName: "Program", Type: domain.FieldTypeUUID},
			{Name: "name", DisplayName: "Program Name", Type: domain.FieldTypeText},
			{Name: "status", DisplayName: "Status", Type: domain.FieldTypeEnum, EnumValues: []string{"active", "inactive", "planned"}},
			{Name: "start_date", DisplayName: "Start Date", Type: domain.FieldTypeDate, Nullable: true},
			{Name: "end_date", DisplayName: "End Date", Type: domain.FieldTypeDate, Nullable: true},
			{Name: "total_submissions", DisplayName: "Total Submissions", Type: domain.FieldTypeInteger, Nullable: true},
			{Name: "total_sites", DisplayName: "Total Sites", Type: domain.FieldTypeInteger, Nullable: true},
			{Name: "description", DisplayName: "Description", Type: domain.FieldTypeJSON, Nullable: true},
		},
	}
}

// declaredJoins is the explicit relationship graph between registered
// tables. Join inference is a lookup here, not table-name pattern matching.
func declaredJoins() map[joinKey][]domain.RelationshipStep {
	step := func(from, to, joinField, foreignField string) domain.RelationshipStep {
		return domain.RelationshipStep{
			FromTable:    from,
			ToTable:      to,
			JoinField:    joinField,
			ForeignField: foreignField,
			JoinType:     domain.JoinTypeInner,
		}
	}

	graph := map[joinKey][]domain.RelationshipStep{
		{from: "petri_observations", to: "submissions"}: {
			step("petri_observations", "submissions", "submission_id", "submission_id"),
		},
		{from: "petri_observations", to: "sites"}: {
			step("petri_observations", "sites", "site_id", "site_id"),
		},
		{from: "petri_observations", to: "pilot_programs"}: {
			step("petri_observations", "pilot_programs", "program_id", "program_id"),
		},
		{from: "gasifier_observations", to: "submissions"}: {
			step("gasifier_observations", "submissions", "submission_id", "submission_id"),
		},
		{from: "gasifier_observations", to: "sites"}: {
			step("gasifier_observations", "sites", "site_id", "site_id"),
		},
		{from: "gasifier_observations", to: "pilot_programs"}: {
			step("gasifier_observations", "pilot_programs", "program_id", "program_id"),
		},
		{from: "submissions", to: "sites"}: {
			step("submissions", "sites", "site_id", "site_id"),
		},
		{from: "submissions", to: "pilot_programs"}: {
			step("submissions", "pilot_programs", "program_id", "program_id"),
		},
		{from: "sites", to: "pilot_programs"}: {
			step("sites", "pilot_programs", "program_id", "program_id"),
		},
	}
	return graph
}
