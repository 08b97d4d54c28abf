package console_api_client

const (
	// API Endpoints
	ActivityEndpoint = "/console/activity/"
	RoundsEndpoint   = "/console/game/rounds"
	CurrentEndpoint  = "/console/game/current"
	StartEndpoint    = "/console/game/start"
	StopEndpoint     = "/console/game/stop"
	WinnersEndpoint  = "/console/game/winners"
	DanmakuEndpoint  = "/console/danmaku/list"

	// Query parameters
	ActivityIDParam = "activityId"
	RoundIDParam    = "roundId"
	PageParam       = "page"
	PageSizeParam   = "pageSize"

	// Headers
	AuthorizationHeader = "Authorization"

	// CodeOK is the envelope code of a successful response.
	CodeOK = 0
)
