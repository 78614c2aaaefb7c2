package dispatch

import (
	"fmt"
	"strings"
)

// Backend services and their URL path prefixes.
const (
	serviceAskMe    = "askme-manager"
	serviceAIEngine = "ai-engine"
)

var servicePaths = map[string]string{
	serviceAskMe:    "api/askme-manager",
	serviceAIEngine: "api/ai-engine/mcp",
}

// endpointServices maps each known endpoint to the service that hosts it.
// Endpoints with dynamic trailing segments (metadata/get/123) match by prefix.
var endpointServices = map[string]string{
	"get-domain":   serviceAskMe,
	"metadata/get": serviceAskMe,

	"nlq-to-data":          serviceAIEngine,
	"get-trend-data":       serviceAIEngine,
	"get-prediction-data":  serviceAIEngine,
	"get-outlier-data":     serviceAIEngine,
	"get-correlation-data": serviceAIEngine,
	"get-change-data":      serviceAIEngine,
	"get-pareto-data":      serviceAIEngine,
}

// resolveService maps an endpoint name to its backend service, allowing
// dynamic path segments after a known endpoint prefix.
func resolveService(endpoint string) (string, error) {
	if svc, ok := endpointServices[endpoint]; ok {
		return svc, nil
	}
	for prefix, svc := range endpointServices {
		if strings.HasPrefix(endpoint, prefix+"/") {
			return svc, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRoute, endpoint)
}

// buildURL builds the full backend URL for an endpoint.
func buildURL(baseURL, endpoint string) (string, error) {
	svc, err := resolveService(endpoint)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(baseURL, "/") + "/" + servicePaths[svc] + "/" + endpoint, nil
}
