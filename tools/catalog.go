package tools

// maxQueryLen caps natural-language queries, matching the backend's own
// limit.
const maxQueryLen = 5000

// HealthCheckTool is the name of the locally served health tool.
const HealthCheckTool = "health_check"

// metadataColumns is the fixed column set requested from the metadata
// endpoint.
var metadataColumns = []string{
	"description",
	"column_name",
	"column_alias",
	"column_type",
	"unit",
	"column_datatype_name",
	"date_format",
}

func queryFields() []Field {
	return []Field{
		{
			Name:        "userQuery",
			Description: "Natural language question to run against the dataset (e.g. 'show me top 10 customers by revenue').",
			Type:        TypeText,
			Required:    true,
			NonEmpty:    true,
			MaxLen:      maxQueryLen,
		},
		{
			Name:        "schemaId",
			Description: "Integer identifier for the dataset schema to query against. Must be a positive integer.",
			Type:        TypeInteger,
			Required:    true,
			Positive:    true,
		},
	}
}

// Catalog returns the full tool table. The table is the single source of
// truth for validation and routing; it never changes after startup.
func Catalog() []Spec {
	return []Spec{
		{
			Name:        "nlq_to_data",
			Title:       "Natural Language Query to Data",
			Description: "Converts a natural language question into structured data analysis results with headers and data rows.",
			Endpoint:    "nlq-to-data",
			Stream:      true,
			Fields:      queryFields(),
		},
		{
			Name:        "get_trend_data",
			Title:       "Analyze Trend Data",
			Description: "Identifies temporal patterns, growth rates, and directional changes in the dataset.",
			Endpoint:    "get-trend-data",
			Fields:      queryFields(),
		},
		{
			Name:        "get_prediction_data",
			Title:       "Generate Prediction Analysis",
			Description: "Forecasts future values and trends from historical data patterns, with confidence intervals.",
			Endpoint:    "get-prediction-data",
			Fields:      queryFields(),
		},
		{
			Name:        "get_outlier_data",
			Title:       "Detect Outliers",
			Description: "Finds anomalous values and unusual patterns in the dataset.",
			Endpoint:    "get-outlier-data",
			Fields:      queryFields(),
		},
		{
			Name:        "get_correlation_data",
			Title:       "Analyze Correlations",
			Description: "Measures relationships and dependencies between fields in the dataset.",
			Endpoint:    "get-correlation-data",
			Fields:      queryFields(),
		},
		{
			Name:        "get_change_data",
			Title:       "Detect Changes",
			Description: "Detects significant shifts and change points in the dataset over time.",
			Endpoint:    "get-change-data",
			Fields:      queryFields(),
		},
		{
			Name:        "get_pareto_data",
			Title:       "Pareto Analysis",
			Description: "Ranks contributing factors to identify the vital few driving an outcome.",
			Endpoint:    "get-pareto-data",
			Fields:      queryFields(),
		},
		{
			Name:        "get_dataset_metadata",
			Title:       "Get Dataset Metadata",
			Description: "Lists all available datasets with their identifiers, names, and timestamps.",
			Endpoint:    "get-domain",
			Method:      "GET",
		},
		{
			Name:        "get_metadata_info",
			Title:       "Get Metadata Details",
			Description: "Fetches column-level metadata (names, aliases, types, units, date formats) for a dataset schema.",
			Endpoint:    "metadata/get",
			PathField:   "schemaId",
			Fields: []Field{
				{
					Name:        "schemaId",
					Description: "Unique schema/domain ID used to retrieve column metadata. Must be a positive integer.",
					Type:        TypeInteger,
					Required:    true,
					Positive:    true,
				},
			},
			BuildPayload: func(args map[string]any) any {
				return map[string]any{
					"columns":  metadataColumns,
					"domainId": args["schemaId"],
				}
			},
		},
		{
			Name:        HealthCheckTool,
			Title:       "Health Check",
			Description: "Reports server status, backend connectivity, and basic diagnostics.",
		},
	}
}
