package kafka

// Topic definitions for analysis event streaming
const (
	// Request lifecycle: AnalysisRequested, PlanCreated, AnalystAssigned,
	// AnalysisCompleted, ResultAggregated, AnalysisEscalated
	TopicAnalysisLifecycle = "analysis.lifecycle"

	// Tool activity: ToolCalled, ToolSucceeded, ToolFailed
	TopicAnalysisTools = "analysis.tools"

	// Inbound feedback on finished analyses
	TopicAnalysisFeedback = "analysis.feedback"
)
