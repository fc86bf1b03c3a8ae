package apiclient

const (
	endpointRefresh      = "/auth/refresh"
	endpointProducts     = "/products/"   // GET ?skip&limit, POST
	endpointProductsByID = "/products/%s" // GET, PUT, DELETE
)

// listPageSize matches the backend's default and maximum page size
const listPageSize = 100
