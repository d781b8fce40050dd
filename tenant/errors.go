package tenant

import "errors"

var (
	errMissingEndpointOrToken = errors.New("tenant config: endpoint and token are required")
	errNoProjectsOrJQL        = errors.New("tenant config: at least one of projects or jql is required")
)
