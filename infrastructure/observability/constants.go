package observability

// Metric name prefixes
const (
	MetricPrefix = "gatekeeper"
)

// Metric names
const (
	// Gate metrics
	MessagesEvaluatedTotal = MetricPrefix + ".messages.evaluated_total"
	VerificationsTotal     = MetricPrefix + ".verifications.total"
	CleanupDeletedTotal    = MetricPrefix + ".cleanup.deleted_total"

	// Command metrics
	CommandsTotal = MetricPrefix + ".commands.total"

	// Database metrics
	DatabaseQueriesTotal  = MetricPrefix + ".database.queries_total"
	DatabaseQueryDuration = MetricPrefix + ".database.query_duration"
)

// Label keys
const (
	LabelDecision   = "decision"
	LabelReason     = "reason"
	LabelSubcommand = "subcommand"
	LabelRepository = "repository"
	LabelMethod     = "method"
)
